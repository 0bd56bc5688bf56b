// Package models defines the records read and written by the miniapp tooling.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// SchemaVersion selects the manifest shape written by the normalizer
type SchemaVersion string

const (
	// SchemaV1 is the flat schema with a single primary contract
	SchemaV1 SchemaVersion = "v1"
	// SchemaV2 adds per-network contracts and network selection
	SchemaV2 SchemaVersion = "v2"
	// SchemaV3 adds bilingual names, descriptions and category labels
	SchemaV3 SchemaVersion = "v3"
)

// ParseSchemaVersion parses a --schema flag value
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	switch v := SchemaVersion(s); v {
	case SchemaV1, SchemaV2, SchemaV3:
		return v, nil
	}
	return "", fmt.Errorf("unknown manifest schema %q (want v1, v2 or v3)", s)
}

// PerNetworkContracts reports whether contracts are keyed by network id
func (v SchemaVersion) PerNetworkContracts() bool { return v != SchemaV1 }

// Bilingual reports whether Chinese name and label fields are written
func (v SchemaVersion) Bilingual() bool { return v == SchemaV3 }

// EscapesNonASCII reports whether the legacy writer escaped non-ASCII text
func (v SchemaVersion) EscapesNonASCII() bool { return v != SchemaV3 }

// Developer identifies who publishes a miniapp
type Developer struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Website string `json:"website" validate:"required,url"`
}

// URLs are the miniapp's relative asset paths
type URLs struct {
	Entry  string `json:"entry" validate:"required"`
	Icon   string `json:"icon" validate:"required"`
	Banner string `json:"banner" validate:"required"`
}

// Features describes client-side capabilities
type Features struct {
	Stateless      bool   `json:"stateless"`
	OfflineSupport bool   `json:"offlineSupport"`
	Deeplink       string `json:"deeplink" validate:"required"`
}

// StateSource tells the platform where a miniapp's state lives
type StateSource struct {
	Type      string   `json:"type" validate:"required"`
	Chain     string   `json:"chain" validate:"required"`
	Endpoints []string `json:"endpoints" validate:"required,min=1,dive,url"`
}

// Platform toggles host platform integrations
type Platform struct {
	Analytics    bool `json:"analytics"`
	Comments     bool `json:"comments"`
	Ratings      bool `json:"ratings"`
	Transactions bool `json:"transactions"`
}

// ContractRef is one network's contract entry
type ContractRef struct {
	Address string `json:"address" validate:"contract_address"`
}

// Contracts is written flat ({"primary": address}) when Networks is nil and
// keyed by network id otherwise.
type Contracts struct {
	Primary  string                 `validate:"omitempty,contract_address"`
	Networks map[string]ContractRef `validate:"omitempty,dive"`
}

// MarshalJSON writes the flat or per-network form. Map keys are sorted by encoding/json.
func (c Contracts) MarshalJSON() ([]byte, error) {
	if c.Networks != nil {
		return json.Marshal(c.Networks)
	}
	return json.Marshal(struct {
		Primary string `json:"primary"`
	}{Primary: c.Primary})
}

// UnmarshalJSON accepts both forms. Network entries may be {"address": ...} objects or bare strings.
func (c *Contracts) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Contracts{}
	for key, value := range raw {
		if key == "primary" {
			if err := json.Unmarshal(value, &c.Primary); err != nil {
				return fmt.Errorf("contracts.primary: %w", err)
			}
			continue
		}
		if c.Networks == nil {
			c.Networks = make(map[string]ContractRef)
		}
		var ref ContractRef
		if err := json.Unmarshal(value, &ref); err != nil {
			var addr string
			if strErr := json.Unmarshal(value, &addr); strErr != nil {
				return fmt.Errorf("contracts.%s: %w", key, err)
			}
			ref.Address = addr
		}
		c.Networks[key] = ref
	}
	return nil
}

// Address returns the contract address for network, falling back to the primary address
func (c Contracts) Address(network string) string {
	if ref, ok := c.Networks[network]; ok && ref.Address != "" {
		return ref.Address
	}
	return c.Primary
}

// NetworkIDs returns the per-network contract keys in sorted order
func (c Contracts) NetworkIDs() []string {
	ids := make([]string, 0, len(c.Networks))
	for id := range c.Networks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Manifest is the neo-manifest.json record. Field order is the on-disk key order.
type Manifest struct {
	Schema            string      `json:"$schema" validate:"required,url"`
	ID                string      `json:"id" validate:"required,app_slug"`
	Name              string      `json:"name" validate:"required"`
	NameZh            string      `json:"name_zh,omitempty"`
	Version           string      `json:"version" validate:"required,semver"`
	Description       string      `json:"description"`
	DescriptionZh     string      `json:"description_zh,omitempty"`
	Category          string      `json:"category" validate:"required"`
	CategoryName      string      `json:"category_name,omitempty"`
	CategoryNameZh    string      `json:"category_name_zh,omitempty"`
	Tags              []string    `json:"tags"`
	Developer         Developer   `json:"developer"`
	Contracts         Contracts   `json:"contracts"`
	DefaultNetwork    string      `json:"default_network,omitempty"`
	SupportedNetworks []string    `json:"supported_networks,omitempty"`
	URLs              URLs        `json:"urls"`
	Permissions       []string    `json:"permissions" validate:"required,min=1"`
	Features          Features    `json:"features"`
	StateSource       StateSource `json:"stateSource"`
	Platform          Platform    `json:"platform"`
	CreatedAt         string      `json:"createdAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	UpdatedAt         string      `json:"updatedAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// Project returns a copy of m reduced to the fields written by version v.
// m is expected to carry the full v3 record with per-network contracts.
func (m Manifest) Project(v SchemaVersion) Manifest {
	out := m
	out.Tags = append([]string{}, m.Tags...)
	out.Permissions = append([]string{}, m.Permissions...)
	out.StateSource.Endpoints = append([]string{}, m.StateSource.Endpoints...)

	if !v.Bilingual() {
		out.NameZh = ""
		out.DescriptionZh = ""
		out.CategoryName = ""
		out.CategoryNameZh = ""
	}

	if !v.PerNetworkContracts() {
		out.Contracts = Contracts{Primary: m.Contracts.Address(m.DefaultNetwork)}
		out.DefaultNetwork = ""
		out.SupportedNetworks = nil
		return out
	}

	networks := make(map[string]ContractRef, len(m.Contracts.Networks))
	for id, ref := range m.Contracts.Networks {
		networks[id] = ref
	}
	out.Contracts = Contracts{Networks: networks}
	out.SupportedNetworks = append([]string{}, m.SupportedNetworks...)
	return out
}

// Encode renders m as 2-space indented JSON with a trailing newline. Non-ASCII
// text is written as \uXXXX escapes for versions that escaped it.
func (m Manifest) Encode(v SchemaVersion) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if v.EscapesNonASCII() {
		return EscapeNonASCII(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

// EscapeNonASCII replaces every non-ASCII rune in encoded JSON with a lower-case
// \uXXXX escape, using surrogate pairs outside the basic plane.
func EscapeNonASCII(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if data[i] < utf8.RuneSelf {
			out = append(out, data[i])
			i++
			continue
		}
		r, size := utf8.DecodeRune(data[i:])
		i += size
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			out = fmt.Appendf(out, `\u%04x\u%04x`, r1, r2)
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}
