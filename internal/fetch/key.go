package fetch

// Key identifies a cached request. The zero Key is "no key": requests made with
// it are suppressed. KeyOf("") is a valid key and distinct from NoKey().
type Key struct {
	value string
	valid bool
}

// NoKey returns the key that suppresses a request.
func NoKey() Key {
	return Key{}
}

// KeyOf returns a valid key for s.
func KeyOf(s string) Key {
	return Key{value: s, valid: true}
}

// Value returns the key string and whether the key is valid.
func (k Key) Value() (string, bool) {
	return k.value, k.valid
}

func (k Key) String() string {
	if !k.valid {
		return "<no key>"
	}
	return k.value
}
