package trip

import (
	"fmt"
	"strings"

	"github.com/viagem-certa/service-trip/internal/domain"
)

// LocationKind tells whether an endpoint is a home address or the city's bus station.
type LocationKind string

const (
	LocationHome       LocationKind = "casa"
	LocationBusStation LocationKind = "rodoviaria"
)

// IsValid returns true if the kind is recognized.
func (k LocationKind) IsValid() bool {
	return k == LocationHome || k == LocationBusStation
}

// Endpoint is an immutable value object for one end of a trip.
type Endpoint struct {
	Kind       LocationKind `json:"tipo"`
	Street     string       `json:"endereco"`
	PostalCode string       `json:"cep,omitempty"`
	Complement string       `json:"complemento,omitempty"`
	District   string       `json:"bairro,omitempty"`
	City       string       `json:"cidade"`
	State      string       `json:"estado"`
}

// Normalized trims every field and defaults the kind to a home address.
func (e Endpoint) Normalized() Endpoint {
	out := Endpoint{
		Kind:       LocationKind(strings.TrimSpace(string(e.Kind))),
		Street:     strings.TrimSpace(e.Street),
		PostalCode: strings.TrimSpace(e.PostalCode),
		Complement: strings.TrimSpace(e.Complement),
		District:   strings.TrimSpace(e.District),
		City:       strings.TrimSpace(e.City),
		State:      strings.ToUpper(strings.TrimSpace(e.State)),
	}
	if out.Kind == "" {
		out.Kind = LocationHome
	}
	return out
}

// Summary is the short "{city} - {state}" form used in listings.
func (e Endpoint) Summary() string {
	return e.City + " - " + e.State
}

func (e Endpoint) validate(label string) error {
	if !e.Kind.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("%s_tipo must be casa or rodoviaria", label))
	}
	if e.City == "" {
		return domain.NewValidationError(fmt.Sprintf("%s_cidade is required", label))
	}
	if e.State == "" {
		return domain.NewValidationError(fmt.Sprintf("%s_estado is required", label))
	}
	if e.Kind == LocationHome && e.Street == "" {
		return domain.NewValidationError(fmt.Sprintf("%s_endereco is required for casa", label))
	}
	return nil
}
