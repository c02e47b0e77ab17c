package types

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestSecretStringRedaction(t *testing.T) {
	secret := SecretString("whsec_super_secret")

	if got := fmt.Sprintf("%s %v", secret, secret); got != "***REDACTED*** ***REDACTED***" {
		t.Errorf("formatting leaked the secret: %q", got)
	}

	raw, err := json.Marshal(struct {
		Key SecretString `json:"key"`
	}{Key: secret})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"key":"***REDACTED***"}` {
		t.Errorf("JSON leaked the secret: %s", raw)
	}

	if secret.Unmask() != "whsec_super_secret" {
		t.Error("Unmask must return the raw value")
	}
}
