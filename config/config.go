// Package config resolves the connection-string/configuration
// surface from spec.md §6: a flat map of connection attributes (the
// same shape the wrapped driver's Connect(conn, attrs) receives) plus
// optional file/environment overrides for the operational defaults,
// following the teacher's viper-based internal/config package.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/auroralink/wrapper-core/dialect"
	"github.com/auroralink/wrapper-core/failover"
)

// HostSelectorStrategy names a selector.Strategy implementation.
type HostSelectorStrategy string

const (
	SelectorRandomHost    HostSelectorStrategy = "RANDOM_HOST"
	SelectorRoundRobin    HostSelectorStrategy = "ROUND_ROBIN"
	SelectorHighestWeight HostSelectorStrategy = "HIGHEST_WEIGHT"
)

// LimitlessMode mirrors limitless.Mode as a string so it round-trips
// through connection attributes and YAML/env config.
type LimitlessMode string

const (
	LimitlessImmediate LimitlessMode = "IMMEDIATE"
	LimitlessLazy      LimitlessMode = "LAZY"
)

// Options is the fully resolved configuration surface, one field per
// row of spec.md §6's option table.
type Options struct {
	ClusterID string `mapstructure:"cluster_id"`

	Server   string `mapstructure:"server" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	Database string `mapstructure:"database" validate:"required"`
	Username string `mapstructure:"uid" validate:"required"`
	Password string `mapstructure:"pwd"`
	SSLMode  string `mapstructure:"ssl_mode"`

	FailoverMode       failover.Mode `mapstructure:"failover_mode" validate:"oneof=STRICT_READER STRICT_WRITER READER_OR_WRITER"`
	FailoverTimeoutMs  int           `mapstructure:"failover_timeout_ms" validate:"gt=0"`

	TopologyRefreshRateMs     int `mapstructure:"topology_refresh_rate_ms" validate:"gt=0"`
	TopologyHighRefreshRateMs int `mapstructure:"topology_high_refresh_rate_ms" validate:"gt=0"`
	IgnoreTopologyRequestMs   int `mapstructure:"ignore_topology_request_ms" validate:"gte=0"`

	HostPattern         string               `mapstructure:"host_pattern"`
	HostSelectorStrategy HostSelectorStrategy `mapstructure:"host_selector_strategy" validate:"oneof=RANDOM_HOST ROUND_ROBIN HIGHEST_WEIGHT"`

	EnableClusterFailover bool `mapstructure:"enable_cluster_failover"`
	EnableLimitless       bool `mapstructure:"enable_limitless"`

	LimitlessMode               LimitlessMode `mapstructure:"limitless_mode" validate:"oneof=IMMEDIATE LAZY"`
	LimitlessMonitorIntervalMs  int           `mapstructure:"limitless_monitor_interval_ms" validate:"gt=0"`
	LimitlessRouterMaxRetries   int           `mapstructure:"limitless_router_max_retries" validate:"gte=0"`
	LimitlessMaxRetries         int           `mapstructure:"limitless_max_retries" validate:"gte=0"`

	DatabaseDialect dialect.Type `mapstructure:"database_dialect" validate:"oneof=AURORA_POSTGRESQL AURORA_POSTGRESQL_LIMITLESS AURORA_MYSQL"`

	// Unrecognized attributes are preserved verbatim and passed through
	// to the underlying driver unchanged, per spec.md §6.
	Passthrough map[string]string `mapstructure:"-"`
}

// knownKeys maps spec.md §6's upper-snake-case attribute names onto
// Options fields; every key not present here lands in Passthrough.
var knownKeys = map[string]struct{}{
	"CLUSTER_ID": {}, "SERVER": {}, "PORT": {}, "DATABASE": {}, "UID": {}, "PWD": {}, "SSL_MODE": {},
	"FAILOVER_MODE": {}, "FAILOVER_TIMEOUT_MS": {},
	"TOPOLOGY_REFRESH_RATE_MS": {}, "TOPOLOGY_HIGH_REFRESH_RATE_MS": {}, "IGNORE_TOPOLOGY_REQUEST_MS": {},
	"HOST_PATTERN": {}, "HOST_SELECTOR_STRATEGY": {},
	"ENABLE_CLUSTER_FAILOVER": {}, "ENABLE_LIMITLESS": {},
	"LIMITLESS_MODE": {}, "LIMITLESS_MONITOR_INTERVAL_MS": {},
	"LIMITLESS_ROUTER_MAX_RETRIES": {}, "LIMITLESS_MAX_RETRIES": {},
	"DATABASE_DIALECT": {},
}

// Defaults returns Options pre-populated with spec.md §6's documented
// defaults, the connection-attribute analogue of the teacher's
// setDefaults/viper.SetDefault block.
func Defaults() Options {
	return Options{
		FailoverMode:              failover.ModeReaderOrWriter,
		FailoverTimeoutMs:         30_000,
		TopologyRefreshRateMs:     30_000,
		TopologyHighRefreshRateMs: 100,
		IgnoreTopologyRequestMs:   30_000,
		HostSelectorStrategy:      SelectorHighestWeight,
		EnableClusterFailover:     true,
		EnableLimitless:           false,
		LimitlessMode:             LimitlessLazy,
		LimitlessMonitorIntervalMs: 7_500,
		LimitlessRouterMaxRetries: 5,
		LimitlessMaxRetries:       5,
		DatabaseDialect:           dialect.AuroraPostgres,
		Passthrough:               map[string]string{},
	}
}

// FromAttributes resolves Options from a flat connection-attribute
// map (the wrapped driver's Connect(conn, attrs) shape), starting from
// Defaults and overriding with every recognized key present in attrs.
// Unknown keys are copied into Passthrough unchanged.
func FromAttributes(attrs map[string]string) (Options, error) {
	opt := Defaults()
	opt.Passthrough = map[string]string{}

	for k, v := range attrs {
		key := strings.ToUpper(k)
		if _, known := knownKeys[key]; !known {
			opt.Passthrough[k] = v
			continue
		}
		if err := opt.setField(key, v); err != nil {
			return Options{}, fmt.Errorf("config: %s: %w", key, err)
		}
	}
	return opt, nil
}

func (o *Options) setField(key, v string) error {
	switch key {
	case "CLUSTER_ID":
		o.ClusterID = v
	case "SERVER":
		o.Server = v
	case "PORT":
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		o.Port = n
	case "DATABASE":
		o.Database = v
	case "UID":
		o.Username = v
	case "PWD":
		o.Password = v
	case "SSL_MODE":
		o.SSLMode = v
	case "FAILOVER_MODE":
		o.FailoverMode = failover.Mode(v)
	case "FAILOVER_TIMEOUT_MS":
		return setIntMs(&o.FailoverTimeoutMs, v)
	case "TOPOLOGY_REFRESH_RATE_MS":
		return setIntMs(&o.TopologyRefreshRateMs, v)
	case "TOPOLOGY_HIGH_REFRESH_RATE_MS":
		return setIntMs(&o.TopologyHighRefreshRateMs, v)
	case "IGNORE_TOPOLOGY_REQUEST_MS":
		return setIntMs(&o.IgnoreTopologyRequestMs, v)
	case "HOST_PATTERN":
		o.HostPattern = v
	case "HOST_SELECTOR_STRATEGY":
		o.HostSelectorStrategy = HostSelectorStrategy(v)
	case "ENABLE_CLUSTER_FAILOVER":
		return setBool(&o.EnableClusterFailover, v)
	case "ENABLE_LIMITLESS":
		return setBool(&o.EnableLimitless, v)
	case "LIMITLESS_MODE":
		o.LimitlessMode = LimitlessMode(v)
	case "LIMITLESS_MONITOR_INTERVAL_MS":
		return setIntMs(&o.LimitlessMonitorIntervalMs, v)
	case "LIMITLESS_ROUTER_MAX_RETRIES":
		return setIntMs(&o.LimitlessRouterMaxRetries, v)
	case "LIMITLESS_MAX_RETRIES":
		return setIntMs(&o.LimitlessMaxRetries, v)
	case "DATABASE_DIALECT":
		o.DatabaseDialect = dialect.Type(v)
	}
	return nil
}

func setIntMs(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// Validate runs struct-tag validation via go-playground/validator,
// matching the teacher's validation idiom elsewhere in its config and
// request-handling layers.
func (o Options) Validate() error {
	return validator.New().Struct(o)
}

// Load reads operational defaults (never per-connection attributes —
// those only ever come from FromAttributes) from a YAML file and/or
// environment variables, following the teacher's LoadConfig: explicit
// file path if given, plus AutomaticEnv with "." replaced by "_" in
// every case.
func Load(configPath string) (Options, error) {
	v := viper.New()
	v.SetEnvPrefix("AURORACORE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	applyViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Options{}, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	var opt Options
	if err := v.Unmarshal(&opt); err != nil {
		return Options{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if opt.Passthrough == nil {
		opt.Passthrough = map[string]string{}
	}
	return opt, nil
}

func applyViperDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("failover_mode", string(d.FailoverMode))
	v.SetDefault("failover_timeout_ms", d.FailoverTimeoutMs)
	v.SetDefault("topology_refresh_rate_ms", d.TopologyRefreshRateMs)
	v.SetDefault("topology_high_refresh_rate_ms", d.TopologyHighRefreshRateMs)
	v.SetDefault("ignore_topology_request_ms", d.IgnoreTopologyRequestMs)
	v.SetDefault("host_selector_strategy", string(d.HostSelectorStrategy))
	v.SetDefault("enable_cluster_failover", d.EnableClusterFailover)
	v.SetDefault("enable_limitless", d.EnableLimitless)
	v.SetDefault("limitless_mode", string(d.LimitlessMode))
	v.SetDefault("limitless_monitor_interval_ms", d.LimitlessMonitorIntervalMs)
	v.SetDefault("limitless_router_max_retries", d.LimitlessRouterMaxRetries)
	v.SetDefault("limitless_max_retries", d.LimitlessMaxRetries)
	v.SetDefault("database_dialect", string(d.DatabaseDialect))
}

// Duration helpers convert the millisecond fields into time.Duration
// for the packages that consume them (monitor.Config, failover.Coordinator,
// limitless.Config all take time.Duration).
func (o Options) FailoverTimeout() time.Duration {
	return time.Duration(o.FailoverTimeoutMs) * time.Millisecond
}

func (o Options) TopologyRefreshRate() time.Duration {
	return time.Duration(o.TopologyRefreshRateMs) * time.Millisecond
}

func (o Options) TopologyHighRefreshRate() time.Duration {
	return time.Duration(o.TopologyHighRefreshRateMs) * time.Millisecond
}

func (o Options) IgnoreTopologyRequest() time.Duration {
	return time.Duration(o.IgnoreTopologyRequestMs) * time.Millisecond
}

func (o Options) LimitlessMonitorInterval() time.Duration {
	return time.Duration(o.LimitlessMonitorIntervalMs) * time.Millisecond
}
