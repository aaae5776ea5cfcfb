package config

import (
	"encoding/json"
	"os"

	"github.com/psharma/securenotes/internal/flagx"
	"github.com/psharma/securenotes/internal/timex"
)

// JsonTierQuota mirrors TierQuota for JSON unmarshalling. Zero MaxNotes /
// MaxUploadMB keep the defaults, so partial overrides are possible.
type JsonTierQuota struct {
	MaxNotes    *int64 `json:"max_notes"`
	MaxUploadMB *int64 `json:"max_upload_mb"`
	APIAccess   *bool  `json:"api_access"`
}

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON config
// files; its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr        *string         `json:"endpoint_addr"`
	DatabaseDSN         *string         `json:"database_dsn"`
	SecretKey           *string         `json:"secret_key"`
	AccessTokenValidity *timex.Duration `json:"access_token_validity"`
	TOTPIssuer          *string         `json:"totp_issuer"`

	PasswordMinLength    *int `json:"password_min_length"`
	PasswordHistoryDepth *int `json:"password_history_depth"`
	PasswordExpiryDays   *int `json:"password_expiry_days"`
	BcryptCost           *int `json:"bcrypt_cost"`

	LockoutThreshold *int            `json:"lockout_threshold"`
	LockoutWindow    *timex.Duration `json:"lockout_window"`
	LockoutDuration  *timex.Duration `json:"lockout_duration"`

	PendingLoginTTL *timex.Duration `json:"pending_login_ttl"`

	NoteStoreBaseURL   *string         `json:"note_store_base_url"`
	QuotaLookupTimeout *timex.Duration `json:"quota_lookup_timeout"`

	PaymentWebhookSecret *string `json:"payment_webhook_secret"`

	QuotaFree       *JsonTierQuota `json:"quota_free"`
	QuotaPro        *JsonTierQuota `json:"quota_pro"`
	QuotaEnterprise *JsonTierQuota `json:"quota_enterprise"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. Only fields present in
// the file override the defaults. Unreadable or invalid files panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TOTPIssuer, c.TOTPIssuer)
	setString(&config.NoteStoreBaseURL, c.NoteStoreBaseURL)
	setString(&config.PaymentWebhookSecret, c.PaymentWebhookSecret)

	setInt(&config.PasswordMinLength, c.PasswordMinLength)
	setInt(&config.PasswordHistoryDepth, c.PasswordHistoryDepth)
	setInt(&config.PasswordExpiryDays, c.PasswordExpiryDays)
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.LockoutThreshold, c.LockoutThreshold)

	if c.AccessTokenValidity != nil {
		config.AccessTokenValidity = c.AccessTokenValidity.Duration
	}
	if c.LockoutWindow != nil {
		config.LockoutWindow = c.LockoutWindow.Duration
	}
	if c.LockoutDuration != nil {
		config.LockoutDuration = c.LockoutDuration.Duration
	}
	if c.PendingLoginTTL != nil {
		config.PendingLoginTTL = c.PendingLoginTTL.Duration
	}
	if c.QuotaLookupTimeout != nil {
		config.QuotaLookupTimeout = c.QuotaLookupTimeout.Duration
	}

	applyQuota(&config.Quotas.Free, c.QuotaFree)
	applyQuota(&config.Quotas.Pro, c.QuotaPro)
	applyQuota(&config.Quotas.Enterprise, c.QuotaEnterprise)
}

func applyQuota(dst *TierQuota, src *JsonTierQuota) {
	if src == nil {
		return
	}
	if src.MaxNotes != nil {
		dst.MaxNotes = *src.MaxNotes
	}
	if src.MaxUploadMB != nil {
		dst.MaxUploadMB = *src.MaxUploadMB
	}
	if src.APIAccess != nil {
		dst.APIAccess = *src.APIAccess
	}
}
