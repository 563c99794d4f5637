package strategy

import (
	"sort"

	"github.com/alejandrodnm/orderflow/internal/domain"
)

// Strategy define el contrato de una fuente de señales de referencia.
// Cada estrategia recorre el tape completo y devuelve sus señales en orden;
// el sweep las puntúa con el mismo evaluador que la absorción.
type Strategy interface {
	// Name devuelve el identificador único de la estrategia.
	Name() string

	// Signals replays the tape and returns the signals it would fire.
	Signals(trades []domain.TradeEvent) []domain.Signal

	// Exits devuelve TP y SL (fracciones) con los que puntuar sus señales.
	Exits() (takeProfit, stopLoss float64)
}

// Registry mantiene las estrategias disponibles indexadas por nombre.
type Registry map[string]Strategy

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// Register añade una estrategia al registry.
func (r Registry) Register(s Strategy) {
	r[s.Name()] = s
}

// Get devuelve la estrategia por nombre.
func (r Registry) Get(name string) (Strategy, bool) {
	s, ok := r[name]
	return s, ok
}

// Names returns the registered names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
