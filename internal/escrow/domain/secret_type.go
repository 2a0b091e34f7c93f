package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SecretType describes one kind of escrowed secret: how its target is identified,
// which metadata it requires, how hostnames are normalized and which KMS key
// protects it.
type SecretType struct {
	Name string
	// TargetField and SecretField name the target id and plaintext in validation errors.
	TargetField string
	SecretField string
	// RetrievedSecretName overrides the key of the plaintext in retrieval bodies.
	RetrievedSecretName string
	// RequiredMetadata lists metadata keys that must be present and non-empty.
	RequiredMetadata []string
	// TargetPattern and SecretPattern, when set, must match the whole value.
	TargetPattern *regexp.Regexp
	SecretPattern *regexp.Regexp

	HostnameRequired bool
	OwnersRequired   bool
	StripFQDN        bool
	UpperHostname    bool

	// KeyName selects the encryption key context.
	KeyName string
	// NotificationSubject is used for retrieval notifications.
	NotificationSubject string
	// SearchFields lists the fields Search accepts besides target_id.
	SearchFields []string
	// ComputedTarget derives the target id from metadata when set.
	ComputedTarget func(metadata map[string]string) string
}

// Keys of the retrieval body shared by every type. The target id is always reported as
// volume_uuid, whatever the type calls it.
const (
	RetrievedSecretName = "passphrase"
	RetrievedTargetName = "volume_uuid"
)

// SecretName returns the key of the plaintext in retrieval bodies.
func (t *SecretType) SecretName() string {
	if t.RetrievedSecretName != "" {
		return t.RetrievedSecretName
	}
	return RetrievedSecretName
}

// NormalizeHostname lower-cases hostname and applies the type's FQDN and case rules.
func (t *SecretType) NormalizeHostname(hostname string) string {
	hostname = strings.TrimSpace(hostname)
	if t.StripFQDN {
		hostname, _, _ = strings.Cut(hostname, ".")
	}
	if t.UpperHostname {
		return strings.ToUpper(hostname)
	}
	return strings.ToLower(hostname)
}

// IsSearchField reports whether field can be searched for this type.
func (t *SecretType) IsSearchField(field string) bool {
	if field == SearchFieldTargetID {
		return true
	}
	for _, f := range t.SearchFields {
		if f == field {
			return true
		}
	}
	return false
}

// Search fields stored as columns. Any other search field is a metadata key.
const (
	SearchFieldTargetID  = "target_id"
	SearchFieldHostname  = "hostname"
	SearchFieldOwner     = "owner"
	SearchFieldCreatedBy = "created_by"
)

var (
	upperSerialPattern = regexp.MustCompile(`^[0-9A-Z\-]+$`)
	duplicityPattern   = regexp.MustCompile(`^[a-f0-9]{32}$`)
	firmwarePassword   = regexp.MustCompile(`^[a-zA-Z0-9]{3,15}$`)
)

var secretTypes = map[string]*SecretType{
	"bitlocker": {
		Name:                "bitlocker",
		TargetField:         "volume_uuid",
		SecretField:         "recovery_key",
		RequiredMetadata:    []string{"dn", "parent_guid", "recovery_guid"},
		HostnameRequired:    true,
		StripFQDN:           true,
		UpperHostname:       true,
		KeyName:             "bitlocker",
		NotificationSubject: "BitLocker Windows disk encryption recovery key retrieval notification",
		SearchFields:        []string{SearchFieldHostname},
	},
	"filevault": {
		Name:                "filevault",
		TargetField:         "volume_uuid",
		SecretField:         "passphrase",
		RequiredMetadata:    []string{"hdd_serial", "platform_uuid", "serial"},
		TargetPattern:       upperSerialPattern,
		HostnameRequired:    true,
		StripFQDN:           true,
		KeyName:             "filevault",
		NotificationSubject: "FileVault 2 Mac disk encryption passphrase retrieval notification",
		SearchFields: []string{
			SearchFieldOwner, SearchFieldCreatedBy, "hdd_serial", SearchFieldHostname, "serial", "platform_uuid",
		},
	},
	"luks": {
		Name:                "luks",
		TargetField:         "volume_uuid",
		SecretField:         "passphrase",
		RequiredMetadata:    []string{"hdd_serial", "platform_uuid"},
		HostnameRequired:    true,
		OwnersRequired:      true,
		KeyName:             "luks",
		NotificationSubject: "Luks Linux disk encryption passphrase retrieval notification",
		SearchFields: []string{
			SearchFieldOwner, SearchFieldHostname, SearchFieldCreatedBy, "platform_uuid", "hdd_serial",
		},
	},
	"duplicity": {
		Name:                "duplicity",
		TargetField:         "volume_uuid",
		SecretField:         "key_pair",
		RetrievedSecretName: "key_pair",
		RequiredMetadata:    []string{"platform_uuid"},
		TargetPattern:       duplicityPattern,
		OwnersRequired:      true,
		KeyName:             "duplicity",
		NotificationSubject: "Duplicity Linux backup encryption key pair retrieval notification",
		SearchFields:        []string{SearchFieldOwner, SearchFieldHostname},
	},
	"provisioning": {
		Name:                "provisioning",
		TargetField:         "volume_uuid",
		SecretField:         "passphrase",
		RequiredMetadata:    []string{"hdd_serial", "platform_uuid", "serial"},
		HostnameRequired:    true,
		StripFQDN:           true,
		KeyName:             "provisioning",
		NotificationSubject: "Provisioning password retrieval notification",
		SearchFields: []string{
			SearchFieldOwner, SearchFieldCreatedBy, "hdd_serial", SearchFieldHostname, "serial", "platform_uuid",
		},
	},
	"apple_firmware": {
		Name:                "apple_firmware",
		TargetField:         "serial",
		SecretField:         "password",
		RequiredMetadata:    []string{"platform_uuid"},
		TargetPattern:       upperSerialPattern,
		SecretPattern:       firmwarePassword,
		HostnameRequired:    true,
		KeyName:             "apple_firmware",
		NotificationSubject: "Apple Firmware password retrieval notification",
		SearchFields:        []string{"asset_tags", SearchFieldHostname, "platform_uuid"},
	},
	"linux_firmware": {
		Name:                "linux_firmware",
		TargetField:         "manufacturer_serial_machine_uuid",
		SecretField:         "password",
		RequiredMetadata:    []string{"manufacturer", "serial", "machine_uuid"},
		SecretPattern:       firmwarePassword,
		HostnameRequired:    true,
		KeyName:             "linux_firmware",
		NotificationSubject: "Linux Firmware password retrieval notification",
		SearchFields:        []string{"asset_tags", SearchFieldHostname, "manufacturer", "serial", "machine_uuid"},
		ComputedTarget: func(metadata map[string]string) string {
			return metadata["manufacturer"] + metadata["serial"] + metadata["machine_uuid"]
		},
	},
	"windows_firmware": {
		Name:                "windows_firmware",
		TargetField:         "serial",
		SecretField:         "password",
		RequiredMetadata:    []string{"smbios_guid"},
		TargetPattern:       upperSerialPattern,
		SecretPattern:       firmwarePassword,
		HostnameRequired:    true,
		KeyName:             "windows_firmware",
		NotificationSubject: "Windows Firmware password retrieval notification",
		SearchFields:        []string{"asset_tags", SearchFieldHostname, "smbios_guid"},
	},
}

// DefaultNotificationSubject is used when a type has no subject of its own.
const DefaultNotificationSubject = "Escrow secret retrieval notification."

// LookupSecretType returns the registered type called name.
func LookupSecretType(name string) (*SecretType, error) {
	t, ok := secretTypes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSecretType, name)
	}
	return t, nil
}

// SecretTypeNames returns every registered type name in sorted order.
func SecretTypeNames() []string {
	names := make([]string, 0, len(secretTypes))
	for name := range secretTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeyNames returns the distinct encryption key names used by registered types.
func KeyNames() []string {
	seen := make(map[string]struct{}, len(secretTypes))
	names := make([]string, 0, len(secretTypes))
	for _, t := range secretTypes {
		if _, ok := seen[t.KeyName]; ok {
			continue
		}
		seen[t.KeyName] = struct{}{}
		names = append(names, t.KeyName)
	}
	sort.Strings(names)
	return names
}
