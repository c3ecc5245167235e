package ecs

import "fmt"

// Kind is the stable discriminant of a component variant.
type Kind uint8

// MaxKinds bounds the per-entity slot table.
const MaxKinds = 64

// Component is implemented by every component variant. Kind must not
// dereference its receiver: Get[T] calls it on a nil pointer to find the kind
// of T without reflection.
type Component interface {
	Kind() Kind
}

var kindNames [MaxKinds]string

// RegisterKindName attaches a human readable name to k for logs and errors.
func RegisterKindName(k Kind, name string) {
	kindNames[k] = name
}

func (k Kind) String() string {
	if int(k) < MaxKinds && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}
