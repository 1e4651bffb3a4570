package shiny

// ID is an identifier whose text form is its shiny.
type ID uint64

// Parse decodes s into an ID.
func Parse(s string) (ID, error) {
	v, err := Decode(s)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

func (id ID) String() string {
	return Encode(uint64(id))
}

func (id ID) Uint64() uint64 {
	return uint64(id)
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
