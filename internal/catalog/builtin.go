package catalog

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MaxQuota caps whole-number call quotas so they stay exact as float64
// and fit an int64 counter.
const MaxQuota = 1 << 53

// DefaultDefinitions returns the built-in constraint table.
func DefaultDefinitions() []Definition {
	lockedOrNegotiable := []Mode{Locked, Negotiable}
	lockedOnly := []Mode{Locked}
	injectedOnly := []Mode{Injected}

	return []Definition{
		// Time
		{Key: "count", Label: "Usage count limit", Dimension: Time,
			Description:  "Maximum number of uses within the validity window.",
			AllowedModes: lockedOrNegotiable, DefaultMode: Negotiable, Kind: KindNumber,
			Bounds: Range(1, MaxQuota), Integer: true},
		{Key: "dateTime", Label: "Usage date range", Dimension: Time,
			Description:  "Use is only allowed between the start and end dates.",
			AllowedModes: lockedOrNegotiable, DefaultMode: Locked, Kind: KindDate},
		{Key: "timeInterval", Label: "Usage time window", Dimension: Time,
			Description:  "Daily window and recurrence, e.g. 09:00-18:00; Weekly.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindText},
		{Key: "frequency", Label: "Usage frequency", Dimension: Time,
			Description:  "Call rate per unit of time, e.g. 100/min.",
			AllowedModes: lockedOrNegotiable, DefaultMode: Locked, Kind: KindText,
			Format: FormatFrequency},
		{Key: "validFrom", Label: "Effective from", Dimension: Time,
			Description:  "Date the agreement takes effect.",
			AllowedModes: []Mode{Negotiable, Locked}, DefaultMode: Negotiable, Kind: KindDate},
		{Key: "validUntil", Label: "Expiry", Dimension: Time,
			Description:  "Date the agreement expires.",
			AllowedModes: []Mode{Negotiable, Locked}, DefaultMode: Negotiable, Kind: KindDate},
		{Key: "usageCount", Label: "Max call count", Dimension: Time,
			Description:  "Calls metered after activation. Allowed range 1 - 5000.",
			AllowedModes: []Mode{Negotiable, Locked}, DefaultMode: Negotiable, Kind: KindNumber,
			Bounds: Range(1, 5000), Integer: true},

		// Location
		{Key: "virtualLocation", Label: "Network address", Dimension: Location,
			Description:  "Use only from the given IP address or CIDR block.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindText},
		{Key: "executionEnvironment", Label: "Execution environment", Dimension: Location,
			Description:  "Secure computing environment the consumer must run.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindEnum,
			Options: []string{"None", "TEE (Trusted Execution Env)", "Sandbox", "PrivacyCompute (MPC/FL)"}},
		{Key: "environment", Label: "Environment requirement", Dimension: Location,
			Description:  "Secure computing environment type required by the provider.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindEnum,
			Options: []string{"None", "TEE", "Sandbox", "PrivacyCompute"}},
		{Key: "ipWhitelist", Label: "IP allowlist", Dimension: Location,
			Description:  "Source addresses allowed to call the data service.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindList},
		{Key: "sourceIp", Label: "Caller address", Dimension: Location,
			Description:  "Filled from the caller's network address at access time.",
			AllowedModes: injectedOnly, DefaultMode: Injected, Kind: KindText, InjectFrom: FactSourceIP},

		// Subject
		{Key: "usageConnector", Label: "Usage connector", Dimension: Subject,
			Description:  "Data may only be used on the given connector identity.",
			AllowedModes: []Mode{Locked, Injected}, DefaultMode: Injected, Kind: KindText, InjectFrom: FactConnectorDID},
		{Key: "role", Label: "Role", Dimension: Subject,
			Description:  "Only users or service accounts with this role may use the data.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindEnum,
			Options: []string{"Any", "DataScientist", "Auditor", "SystemAdmin", "AppService"}},
		{Key: "consumerConnectorId", Label: "Consumer connector", Dimension: Subject,
			Description:  "Filled from the calling connector's DID at access time.",
			AllowedModes: injectedOnly, DefaultMode: Injected, Kind: KindText, InjectFrom: FactConnectorDID},
		{Key: "certFingerprint", Label: "Certificate fingerprint", Dimension: Subject,
			Description:  "Filled from the caller's client certificate at access time.",
			AllowedModes: injectedOnly, DefaultMode: Injected, Kind: KindText, InjectFrom: FactCertFingerprint},

		// Object
		{Key: "assetState", Label: "Asset state", Dimension: Object,
			Description:  "State the data must be in before use.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindEnum,
			Options: []string{"Raw", "Encrypted", "Anonymized", "Watermarked"}},
		{Key: "usageVolume", Label: "Usage volume", Dimension: Object,
			Description:  "Maximum data volume, e.g. 1GB or 1M rows.",
			AllowedModes: []Mode{Negotiable, Locked}, DefaultMode: Negotiable, Kind: KindText},
		{Key: "targetPart", Label: "Fields", Dimension: Object,
			Description:  "Only the listed fields or columns may be accessed.",
			AllowedModes: lockedOrNegotiable, DefaultMode: Locked, Kind: KindList},

		// Communication
		{Key: "networkConnection", Label: "Network requirement", Dimension: Communication,
			Description:  "Transport network type.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindEnum,
			Options: []string{"Public Internet", "VPN", "Private Line (APN)", "Intranet"}},
		{Key: "transportProtocol", Label: "Transport protocol", Dimension: Communication,
			Description:  "Transport or application protocol.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindEnum,
			Options: []string{"HTTPS", "TLS", "SFTP", "gRPC", "AMQP"}},
		{Key: "communicationChannel", Label: "Channel security", Dimension: Communication,
			Description:  "Encryption level of the communication channel.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindEnum,
			Options: []string{"TLS 1.2", "TLS 1.3", "IPSec", "GmSSL (SM2/SM3/SM4)"}},
		{Key: "securityLevel", Label: "Security level", Dimension: Communication,
			Description:  "Minimum security classification of the consumer.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindText},

		// Storage
		{Key: "storageMethod", Label: "Storage method", Dimension: Storage,
			Description:  "Whether persistent storage is allowed.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindEnum,
			Options: []string{"Persistent", "Volatile (Memory Only)", "Cache Only"}},
		{Key: "storageFormat", Label: "Storage format", Dimension: Storage,
			Description:  "Encryption required for data at rest.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindEnum,
			Options: []string{"Plaintext", "Encrypted (AES-256)", "Encrypted (SM4)", "Encrypted (TDE)"}},
		{Key: "storageLocation", Label: "Storage location", Dimension: Storage,
			Description:  "Physical or logical location data may be stored in.",
			AllowedModes: lockedOnly, DefaultMode: Locked, Kind: KindText},
		{Key: "storageDuration", Label: "Retention", Dimension: Storage,
			Description:  "Maximum retention after use, e.g. P7D or 24h.",
			AllowedModes: lockedOrNegotiable, DefaultMode: Locked, Kind: KindText},
	}
}

// Default returns the built-in catalog. It panics if the built-in table is
// inconsistent, which is a programming error.
func Default() *Catalog {
	c, err := New(DefaultDefinitions())
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// DefaultYAML returns the built-in table as a commented YAML document for
// `pactline catalog init`.
func DefaultYAML() string {
	var buf bytes.Buffer
	buf.WriteString(`# pactline constraint catalog
# Generated by: pactline catalog init
#
# Loaded once at startup. Changes require a restart.
#
# Fields:
#   key: unique constraint key (ODRL leftOperand)
#   dimension: Time | Location | Subject | Object | Communication | Storage
#   allowed_modes: subset of Locked, Negotiable, Injected
#   default_mode: one of allowed_modes
#   kind: text | number | date | enum | list
#   options: required for enum kind
#   bounds: {min, max} inclusive, number kind only
#   integer: true to accept whole numbers only, number kind only
#   format: extra grammar for text kind (frequency: N/unit, e.g. 100/min)
#   inject_from: runtime fact for Injected keys
#                (connector_did | source_ip | cert_fingerprint | role)
#
# builtin: true keeps the built-in table and overrides it by key.
# builtin: false uses only the definitions below.
builtin: false
`)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	_ = enc.Encode(File{Definitions: DefaultDefinitions()})
	_ = enc.Close()
	return buf.String()
}
