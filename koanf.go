package undot

import (
	"errors"

	"github.com/knadh/koanf/v2"
)

type koanfProvider struct {
	c *Container
}

var _ koanf.Provider = koanfProvider{}

// KoanfProvider exposes an undotted copy of c as a koanf provider:
//
//	k := koanf.New(".")
//	err := k.Load(undot.KoanfProvider(cfg), nil)
func KoanfProvider(c *Container) koanf.Provider {
	return koanfProvider{c: Undot(c)}
}

// ReadBytes is not supported; koanf calls Read when no parser is given.
func (koanfProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("undot: koanf provider does not support ReadBytes")
}

// Read returns the config as a nested map.
func (p koanfProvider) Read() (map[string]any, error) {
	return p.c.ToMap(), nil
}

// FromKoanf copies the config held by k into a Container. koanf does not
// keep key order, so keys are sorted.
func FromKoanf(k *koanf.Koanf) (*Container, error) {
	return FromAny(k.Raw())
}
