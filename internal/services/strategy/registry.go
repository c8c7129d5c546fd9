package strategy

import (
	"fmt"
	"sort"

	domsvc "TradeDesk/internal/domain/service"
	"TradeDesk/pkg/config"

	"gopkg.in/yaml.v3"
)

// Deps carries collaborators some strategies need.
type Deps struct {
	Classifier domsvc.SentimentClassifier
}

// Factory builds a strategy from its YAML params.
type Factory func(params map[string]any, deps Deps) (domsvc.Strategy, error)

// Registry maps strategy names to constructors.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("technical", func(params map[string]any, _ Deps) (domsvc.Strategy, error) {
		p := DefaultTechnicalParams()
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewTechnical(p)
	})
	r.Register("volume", func(params map[string]any, _ Deps) (domsvc.Strategy, error) {
		p := DefaultVolumeParams()
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return NewVolume(p)
	})
	r.Register("sentiment", func(_ map[string]any, deps Deps) (domsvc.Strategy, error) {
		return NewSentiment(deps.Classifier)
	})
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists registered strategies in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Build constructs a strategy. Unknown names and bad params are ConfigErrors.
func (r *Registry) Build(sc config.StrategyConfig, deps Deps) (domsvc.Strategy, error) {
	f, ok := r.factories[sc.Name]
	if !ok {
		return nil, config.NewConfigError("strategies.list."+sc.Name, "unknown strategy")
	}
	s, err := f(sc.Params, deps)
	if err != nil {
		return nil, config.NewConfigError("strategies.list."+sc.Name+".params", "%v", err)
	}
	return s, nil
}

// decodeParams overlays YAML-decoded params onto a typed struct.
func decodeParams(params map[string]any, dst any) error {
	if len(params) == 0 {
		return nil
	}
	b, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := yaml.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
