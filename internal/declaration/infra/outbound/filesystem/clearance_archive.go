package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
	"github.com/google/uuid"
)

var ErrClearanceNotFound = errors.New("clearance not archived")

// ClearanceRecord es la constancia archivada de un levante.
type ClearanceRecord struct {
	DeclarationID      uuid.UUID `json:"declarationId"`
	MRN                string    `json:"mrn"`
	GuaranteeAccountID uuid.UUID `json:"guaranteeAccountId"`
	TotalDuty          int64     `json:"totalDuty"`
	ClearedAt          time.Time `json:"clearedAt"`
	EventID            uuid.UUID `json:"eventId"`
}

// ClearanceArchive guarda cada levante en su propio fichero <declarationID>.json.
// Guardar dos veces el mismo levante deja el fichero igual.
type ClearanceArchive struct {
	dir string
}

func NewClearanceArchive(dir string) (*ClearanceArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}
	return &ClearanceArchive{dir: dir}, nil
}

func (a *ClearanceArchive) Register(r *relayer.Registry) {
	relayer.On(r, "declaration.clearance_archive", func(ctx context.Context, evt events.CustomsCleared, env relayer.Envelope) error {
		return a.Save(ctx, ClearanceRecord{
			DeclarationID:      evt.DeclarationID,
			MRN:                evt.MRN,
			GuaranteeAccountID: evt.GuaranteeAccountID,
			TotalDuty:          evt.TotalDuty,
			ClearedAt:          evt.OccurredAt(),
			EventID:            env.MessageID,
		})
	})
}

func (a *ClearanceArchive) path(declarationID uuid.UUID) string {
	return filepath.Join(a.dir, declarationID.String()+".json")
}

// Save inserta o sustituye el registro de la declaración.
func (a *ClearanceArchive) Save(ctx context.Context, rec ClearanceRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	// Escritura atómica: fichero temporal único y rename.
	tmp, err := os.CreateTemp(a.dir, rec.DeclarationID.String()+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), a.path(rec.DeclarationID)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (a *ClearanceArchive) Get(ctx context.Context, declarationID uuid.UUID) (ClearanceRecord, error) {
	return a.read(a.path(declarationID))
}

func (a *ClearanceArchive) GetAll(ctx context.Context) ([]ClearanceRecord, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}

	out := make([]ClearanceRecord, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := a.read(filepath.Join(a.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (a *ClearanceArchive) read(path string) (ClearanceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ClearanceRecord{}, ErrClearanceNotFound
		}
		return ClearanceRecord{}, err
	}

	var rec ClearanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ClearanceRecord{}, fmt.Errorf("corrupt clearance record %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}
