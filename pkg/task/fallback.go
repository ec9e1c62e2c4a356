package task

// Source tags which step of a fallback chain produced a value
type Source int

const (
	Primary Source = iota
	Fallback
	Default
)

func (s Source) String() string {
	switch s {
	case Primary:
		return "primary"
	case Fallback:
		return "fallback"
	default:
		return "default"
	}
}

// Resolved is a value together with the path that produced it
type Resolved[T any] struct {
	Value  T
	Source Source
}

// Step is one attempt in a fallback chain. ok=false moves on to the next step.
type Step[T any] func() (value T, ok bool)

// Resolve tries primary, then each fallback in order, and finally returns def.
func Resolve[T any](primary Step[T], def T, fallbacks ...Step[T]) Resolved[T] {
	if primary != nil {
		if v, ok := primary(); ok {
			return Resolved[T]{Value: v, Source: Primary}
		}
	}
	for _, step := range fallbacks {
		if step == nil {
			continue
		}
		if v, ok := step(); ok {
			return Resolved[T]{Value: v, Source: Fallback}
		}
	}
	return Resolved[T]{Value: def, Source: Default}
}
