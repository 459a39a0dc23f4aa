package trip

import (
	"fmt"
	"strings"

	"github.com/viagem-certa/service-trip/internal/domain"
)

// ServiceType is the kind of transport requested.
type ServiceType string

const (
	ServicePassenger ServiceType = "passageiro"
	ServiceCargo     ServiceType = "mercadoria"
	ServiceExecutive ServiceType = "executivo"
)

// IsValid returns true if the service type is recognized.
func (t ServiceType) IsValid() bool {
	switch t {
	case ServicePassenger, ServiceCargo, ServiceExecutive:
		return true
	}
	return false
}

// CarriesPassengers is true for passenger and executive trips.
func (t ServiceType) CarriesPassengers() bool {
	return t == ServicePassenger || t == ServiceExecutive
}

// PassengerDetails describes the people travelling.
type PassengerDetails struct {
	Count         int    `json:"quantidade_passageiros"`
	SpecialNeeds  string `json:"necessidades_especiais,omitempty"`
	HasLuggage    bool   `json:"possui_bagagem"`
	LuggagePieces int    `json:"quantidade_bagagens,omitempty"`
}

func (p PassengerDetails) validate() error {
	if p.Count < 1 {
		return domain.NewValidationError("quantidade_passageiros must be at least 1")
	}
	if p.LuggagePieces < 0 {
		return domain.NewValidationError("quantidade_bagagens cannot be negative")
	}
	if !p.HasLuggage && p.LuggagePieces > 0 {
		return domain.NewValidationError("quantidade_bagagens requires possui_bagagem")
	}
	return nil
}

// CargoDetails describes goods being moved.
type CargoDetails struct {
	Description      string   `json:"descricao_carga"`
	WeightKg         *float64 `json:"peso_kg,omitempty"`
	HeightCm         *float64 `json:"dimensao_altura_cm,omitempty"`
	WidthCm          *float64 `json:"dimensao_largura_cm,omitempty"`
	DepthCm          *float64 `json:"dimensao_profundidade_cm,omitempty"`
	DeclaredValue    *float64 `json:"valor_declarado,omitempty"`
	Fragile          bool     `json:"carga_fragil"`
	SpecialPackaging bool     `json:"requer_embalagem_especial"`
}

// VolumeM3 is height x width x depth in cubic meters, or 0 when a dimension
// is missing.
func (c CargoDetails) VolumeM3() float64 {
	if c.HeightCm == nil || c.WidthCm == nil || c.DepthCm == nil {
		return 0
	}
	return (*c.HeightCm * *c.WidthCm * *c.DepthCm) / 1_000_000
}

func (c CargoDetails) validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return domain.NewValidationError("descricao_carga is required")
	}
	for name, v := range map[string]*float64{
		"peso_kg":                  c.WeightKg,
		"dimensao_altura_cm":       c.HeightCm,
		"dimensao_largura_cm":      c.WidthCm,
		"dimensao_profundidade_cm": c.DepthCm,
		"valor_declarado":          c.DeclaredValue,
	} {
		if v != nil && *v < 0 {
			return domain.NewValidationError(fmt.Sprintf("%s cannot be negative", name))
		}
	}
	return nil
}
