package schema

import "testing"

func TestValidateWellFormed(t *testing.T) {
	c := New(8, nil)

	if err := c.Validate([]byte(`{"type":"object","properties":{}}`)); err != nil {
		t.Errorf("Validate returned error for well-formed schema: %v", err)
	}
}

func TestValidateEmptySchemaAllowed(t *testing.T) {
	c := New(8, nil)

	if err := c.Validate(nil); err != nil {
		t.Errorf("Validate(nil) = %v, want nil", err)
	}
}

func TestValidateRejectsNonObject(t *testing.T) {
	c := New(8, nil)

	if err := c.Validate([]byte(`"not an object"`)); err == nil {
		t.Errorf("Validate expected error for non-object schema")
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	c := New(8, nil)

	if err := c.Validate([]byte(`{"type":"bogus"}`)); err == nil {
		t.Errorf("Validate expected error for unknown type")
	}
}

func TestValidateCachesResult(t *testing.T) {
	c := New(8, nil)
	raw := []byte(`{"type":"string"}`)

	c.Validate(raw)
	c.Validate(raw)

	hits, misses := c.Stats()
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
}
