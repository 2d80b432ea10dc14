// Package schema implements the capture guard: optional JSON Schema
// screening of inbound webhook payloads. The hub records arbitrary
// payloads by default; a guard only filters once a schema is configured.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrViolation is returned when a payload fails the configured schema.
// Compilation problems with the schema document itself are reported as
// plain errors, not violations.
var ErrViolation = errors.New("schema: payload violates capture schema")

// Guard screens payloads against JSON Schema documents. Compiled schemas
// are cached by content digest, so repeated captures under the same
// schema compile once.
type Guard struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewGuard creates an empty capture guard.
func NewGuard() *Guard {
	return &Guard{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Check validates a payload against the schema document. A nil schema
// admits everything.
func (g *Guard) Check(schemaDoc, payload any) error {
	if schemaDoc == nil {
		return nil
	}

	compiled, err := g.compile(schemaDoc)
	if err != nil {
		return fmt.Errorf("schema: compile capture schema: %w", err)
	}

	if err := compiled.Validate(payload); err != nil {
		return fmt.Errorf("%w: %s", ErrViolation, err.Error())
	}
	return nil
}

func (g *Guard) compile(schemaDoc any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])

	g.mu.RLock()
	if cached, ok := g.cache[digest]; ok {
		g.mu.RUnlock()
		return cached, nil
	}
	g.mu.RUnlock()

	var doc any
	if unmarshalErr := json.Unmarshal(raw, &doc); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", unmarshalErr)
	}

	// The digest doubles as the schema's resource identity.
	url := "nexus://capture-guard/" + digest[:16]

	c := jsonschema.NewCompiler()
	if addErr := c.AddResource(url, doc); addErr != nil {
		return nil, fmt.Errorf("add schema resource: %w", addErr)
	}

	compiled, compileErr := c.Compile(url)
	if compileErr != nil {
		return nil, fmt.Errorf("compile schema: %w", compileErr)
	}

	g.mu.Lock()
	g.cache[digest] = compiled
	g.mu.Unlock()

	return compiled, nil
}
