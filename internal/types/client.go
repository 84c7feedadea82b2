package types

import (
	"fmt"
	"regexp"
	"strings"

	"pinrelay/internal/pin"
)

// Client is a registered client record as kept by the registry.
// Key is the opaque primary key; it is assigned once at provisioning and never changes.
// Phone is the channel address used to deliver PINs. An empty Phone makes the client ineligible
// for PIN resets.
// Pin is either empty (never provisioned) or exactly pin.Length decimal digits.
// PinVersion is bumped by the store on every PIN write and orders concurrent writes; callers never set it.
type Client struct {
	Key          string            `json:"key" yaml:"key" dynamodbav:"client_key"`
	IDs          []string          `json:"ids,omitempty" yaml:"ids" dynamodbav:"ids,omitempty"`
	FullName     string            `json:"fullName" yaml:"fullName" dynamodbav:"full_name"`
	Phone        string            `json:"phone,omitempty" yaml:"phone" dynamodbav:"phone,omitempty"`
	Country      string            `json:"country,omitempty" yaml:"country" dynamodbav:"country,omitempty"`
	City         string            `json:"city,omitempty" yaml:"city" dynamodbav:"city,omitempty"`
	Address      string            `json:"address,omitempty" yaml:"address" dynamodbav:"address,omitempty"`
	AgencyName   string            `json:"agencyName,omitempty" yaml:"agencyName" dynamodbav:"agency_name,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty" yaml:"customFields" dynamodbav:"custom_fields,omitempty"`
	Pin          string            `json:"pin,omitempty" yaml:"pin" dynamodbav:"pin,omitempty"`
	PinVersion   int64             `json:"pinVersion,omitempty" yaml:"-" dynamodbav:"pin_ver"`
	PinUpdatedAt int64             `json:"pinUpdatedAt,omitempty" yaml:"-" dynamodbav:"pin_updated_at"`
	CreatedAt    int64             `json:"createdAt,omitempty" yaml:"-" dynamodbav:"created_at"`
	UpdatedAt    int64             `json:"updatedAt,omitempty" yaml:"-" dynamodbav:"updated_at"`
}

const (
	ClientKeyMaxLength = 128
)

// HasPhone reports whether the client has a usable channel address.
func (c Client) HasPhone() bool {
	return strings.TrimSpace(c.Phone) != ""
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("key is required")
	}
	if len(c.Key) > ClientKeyMaxLength {
		return fmt.Errorf("key must be at most %d characters", ClientKeyMaxLength)
	}
	if strings.TrimSpace(c.FullName) == "" {
		return fmt.Errorf("fullName is required")
	}
	if c.Pin != "" && !pin.Valid(c.Pin) {
		return fmt.Errorf("pin must be exactly %d digits", pin.Length)
	}
	if c.PinVersion < 0 {
		return fmt.Errorf("pinVersion must be non-negative")
	}
	return nil
}

var phoneRegex = regexp.MustCompile(`^(\+?\d{1,3})(\d{4,})(\d{4})$`)

// MaskPhone keeps the country code and the last four digits.
// Example: +966512345678 -> +966***5678
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	matches := phoneRegex.FindStringSubmatch(phone)
	if len(matches) == 4 {
		return matches[1] + "***" + matches[3]
	}
	if len(phone) > 4 {
		return "***" + phone[len(phone)-4:]
	}
	return "***"
}

// ClientView is the projection of a Client returned to admin callers. It never carries the PIN.
type ClientView struct {
	Key          string            `json:"key"`
	IDs          []string          `json:"ids,omitempty"`
	FullName     string            `json:"fullName"`
	Phone        string            `json:"phone,omitempty"`
	Country      string            `json:"country,omitempty"`
	City         string            `json:"city,omitempty"`
	Address      string            `json:"address,omitempty"`
	AgencyName   string            `json:"agencyName,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty"`
	HasPin       bool              `json:"hasPin"`
	PinUpdatedAt int64             `json:"pinUpdatedAt,omitempty"`
	CreatedAt    int64             `json:"createdAt,omitempty"`
	UpdatedAt    int64             `json:"updatedAt,omitempty"`
}

func (c Client) View() ClientView {
	return ClientView{
		Key:          c.Key,
		IDs:          c.IDs,
		FullName:     c.FullName,
		Phone:        c.Phone,
		Country:      c.Country,
		City:         c.City,
		Address:      c.Address,
		AgencyName:   c.AgencyName,
		CustomFields: c.CustomFields,
		HasPin:       c.Pin != "",
		PinUpdatedAt: c.PinUpdatedAt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
