package estimate

// OutcomeKind tags an Outcome.
type OutcomeKind string

const (
	// OutcomePending means the inputs are incomplete and nothing was attempted.
	OutcomePending OutcomeKind = "pending"
	// OutcomeInProgress means an estimate is being computed.
	OutcomeInProgress OutcomeKind = "in_progress"
	// OutcomeReady carries a distance and price.
	OutcomeReady OutcomeKind = "ready"
	// OutcomeUnavailable carries the reason no estimate could be produced.
	OutcomeUnavailable OutcomeKind = "unavailable"
)

// User-facing reasons attached to an unavailable outcome.
const (
	ReasonOriginNotFound      = "origin address not found"
	ReasonDestinationNotFound = "destination address not found"
	ReasonDistanceFailed      = "could not compute distance"
)

// Outcome is the result of one estimation attempt.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	DistanceKm float64 `json:"distancia_km,omitempty"`
	Price      float64 `json:"preco_estimado,omitempty"`
	PriceText  string  `json:"preco_formatado,omitempty"`
	Fallback   bool    `json:"distancia_aproximada,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// Pending returns the pending outcome.
func Pending() Outcome { return Outcome{Kind: OutcomePending} }

// InProgress returns the in-progress outcome.
func InProgress() Outcome { return Outcome{Kind: OutcomeInProgress} }

// Ready builds a ready outcome for distance and price.
func Ready(distanceKm, price float64, fallback bool) Outcome {
	return Outcome{
		Kind:       OutcomeReady,
		DistanceKm: distanceKm,
		Price:      price,
		PriceText:  FormatBRL(price),
		Fallback:   fallback,
	}
}

// Unavailable builds an unavailable outcome with a user-facing reason.
func Unavailable(reason string) Outcome {
	return Outcome{Kind: OutcomeUnavailable, Reason: reason}
}

// IsReady reports whether the outcome carries a usable estimate.
func (o Outcome) IsReady() bool { return o.Kind == OutcomeReady }
