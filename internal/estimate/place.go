package estimate

import (
	"fmt"
	"strings"
)

// PlaceKind tells the geocoder how to phrase a search.
type PlaceKind string

const (
	// KindBusStation targets the city's bus station (rodoviária).
	KindBusStation PlaceKind = "rodoviaria"
	// KindAddress targets a residential street address.
	KindAddress PlaceKind = "casa"
)

const country = "Brasil"

// PlaceQuery describes one trip endpoint as the customer typed it.
type PlaceQuery struct {
	Kind   PlaceKind `json:"tipo" validate:"omitempty,oneof=rodoviaria casa"`
	Street string    `json:"endereco" validate:"max=200"`
	City   string    `json:"cidade" validate:"max=120"`
	State  string    `json:"estado" validate:"max=40"`
}

// IsBusStation reports whether the query targets a bus station.
// Anything else, including an empty kind, is a residential address.
func (q PlaceQuery) IsBusStation() bool {
	return q.Kind == KindBusStation
}

// Normalize trims whitespace from every field.
func (q PlaceQuery) Normalize() PlaceQuery {
	return PlaceQuery{
		Kind:   PlaceKind(strings.TrimSpace(string(q.Kind))),
		Street: strings.TrimSpace(q.Street),
		City:   strings.TrimSpace(q.City),
		State:  strings.TrimSpace(q.State),
	}
}

// Complete reports whether the query carries enough to attempt a search.
func (q PlaceQuery) Complete() bool {
	n := q.Normalize()
	if n.City == "" || n.State == "" {
		return false
	}
	if !n.IsBusStation() && n.Street == "" {
		return false
	}
	return true
}

// precisePhrase is the first search attempted for the query.
func (q PlaceQuery) precisePhrase() string {
	n := q.Normalize()
	if n.IsBusStation() {
		return fmt.Sprintf("Rodoviária, %s, %s, %s", n.City, n.State, country)
	}
	return fmt.Sprintf("%s, %s, %s, %s", n.Street, n.City, n.State, country)
}

// cityCenterPhrase is the fallback search used when the precise one misses.
func (q PlaceQuery) cityCenterPhrase() string {
	n := q.Normalize()
	return fmt.Sprintf("%s, %s, %s", n.City, n.State, country)
}
