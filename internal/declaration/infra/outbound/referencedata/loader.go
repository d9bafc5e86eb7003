package referencedata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/davicafu/customsflow/internal/declaration/domain"
)

// LoadFile lee un JSON del tipo {"tariff": ["85171300", ...], "country": [...]}.
func LoadFile(path string) (Codes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference data: %w", err)
	}

	var codes Codes
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("failed to parse reference data %s: %w", path, err)
	}
	for list := range codes {
		switch list {
		case domain.CodeListTariff, domain.CodeListCountry, domain.CodeListCurrency, domain.CodeListProcedure:
		default:
			return nil, fmt.Errorf("unknown code list %q in %s", list, path)
		}
	}
	return codes, nil
}

// DefaultCodes es un conjunto mínimo para arrancar sin fichero de referencia.
func DefaultCodes() Codes {
	return Codes{
		domain.CodeListTariff: {
			"85171300", "84713000", "61091000", "62034231", "22030001",
			"09011100", "87032310", "39269097", "73181595", "94036010",
		},
		domain.CodeListCountry: {
			"ES", "FR", "DE", "IT", "PT", "NL", "BE", "CN", "US", "GB",
			"JP", "KR", "IN", "TR", "MA", "MX", "BR", "VN",
		},
		domain.CodeListCurrency:  {"EUR", "USD", "GBP", "CNY", "JPY", "CHF"},
		domain.CodeListProcedure: {"4000", "4200", "5100", "7100", "1000"},
	}
}
