package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReportConfig holds tunables of the KPI computations.
type ReportConfig struct {
	Status subscriptiondomain.Vocabulary `mapstructure:"status"`
	Cohort CohortConfig                  `mapstructure:"cohort"`
}

type CohortConfig struct {
	LookbackDays int     `mapstructure:"lookbackDays"`
	DaysPerMonth float64 `mapstructure:"daysPerMonth"`
}

func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Status: subscriptiondomain.DefaultVocabulary(),
		Cohort: CohortConfig{
			LookbackDays: 30,
			DaysPerMonth: 30.44,
		},
	}
}

// LoadReport reads report.yml from the working directory or /etc/kpireport.
// A missing file yields DefaultReportConfig.
func LoadReport() (ReportConfig, error) {
	v, err := newReportViper()
	if err != nil {
		return ReportConfig{}, err
	}
	return decodeReport(v)
}

func newReportViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName("report")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/kpireport")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KPIREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReportConfig()
	v.SetDefault("report.cohort.lookbackDays", defaults.Cohort.LookbackDays)
	v.SetDefault("report.cohort.daysPerMonth", defaults.Cohort.DaysPerMonth)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return v, nil
}

func decodeReport(v *viper.Viper) (ReportConfig, error) {
	var cfg ReportConfig
	if err := v.UnmarshalKey("report", &cfg); err != nil {
		return ReportConfig{}, err
	}
	cfg.Status = cfg.Status.WithDefaults()
	if err := validateReportConfig(cfg); err != nil {
		return ReportConfig{}, err
	}
	return cfg, nil
}

func validateReportConfig(cfg ReportConfig) error {
	if cfg.Cohort.LookbackDays <= 0 {
		return errors.New("report.cohort.lookbackDays must be positive")
	}
	if cfg.Cohort.DaysPerMonth <= 0 {
		return errors.New("report.cohort.daysPerMonth must be positive")
	}
	return nil
}

// ReportHolder keeps the latest valid ReportConfig and follows edits to
// report.yml while the dashboard server is running.
type ReportHolder struct {
	current atomic.Value // holds ReportConfig
}

func NewReportHolder(log *zap.Logger) (*ReportHolder, error) {
	v, err := newReportViper()
	if err != nil {
		return nil, err
	}
	cfg, err := decodeReport(v)
	if err != nil {
		return nil, err
	}

	holder := &ReportHolder{}
	holder.current.Store(cfg)

	if v.ConfigFileUsed() == "" {
		return holder, nil
	}

	log = log.Named("config.report")
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeReport(v)
		if err != nil {
			log.Warn("report config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("report config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *ReportHolder) Get() ReportConfig {
	return h.current.Load().(ReportConfig)
}

// NewStaticReportHolder serves cfg without watching any file.
func NewStaticReportHolder(cfg ReportConfig) *ReportHolder {
	holder := &ReportHolder{}
	holder.current.Store(cfg)
	return holder
}
