package httphelper

import (
	"errors"
	"log/slog"
	"regexp"

	"github.com/Depado/ginprom"
	"github.com/furfur/central/internal/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	sloggin "github.com/samber/slog-gin"
)

var ErrValidator = errors.New("failed to register validator")

var (
	reCkey      = regexp.MustCompile(`^[a-z0-9]{1,32}$`)
	reDiscordID = regexp.MustCompile(`^[0-9]{1,20}$`)
)

type RouterOpts struct {
	HTTPLogEnabled    bool
	LogLevel          log.Level
	Mode              string
	HTTPOtelEnabled   bool
	SentryDSN         string
	Version           string
	PProfEnabled      bool
	PrometheusEnabled bool
	CORSOrigins       []string
}

// CreateRouter constructs a new router using gin.Engine with the provided RouterOpts.
func CreateRouter(opts RouterOpts) (*gin.Engine, error) {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(recoveryHandler())
	engine.Use(errorHandler())

	if errReg := registerCustomValidators(); errReg != nil {
		return nil, errReg
	}

	if opts.HTTPLogEnabled {
		useSloggin(engine, opts.LogLevel, opts.HTTPOtelEnabled)
	}

	if opts.SentryDSN != "" {
		useSentry(engine, opts.Version)
	}

	if opts.PProfEnabled {
		pprof.Register(engine)
	}

	useCors(engine, opts.CORSOrigins, opts.Mode != gin.ReleaseMode)

	if opts.PrometheusEnabled {
		usePrometheus(engine)
	}

	return engine, nil
}

// registerCustomValidators handles registering our custom request field type validators within the
// validation engine that gin uses.
func registerCustomValidators() error {
	if instance, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := instance.RegisterValidation("ckey", ckeyValidator); err != nil {
			return errors.Join(err, ErrValidator)
		}

		if err := instance.RegisterValidation("discordid", discordIDValidator); err != nil {
			return errors.Join(err, ErrValidator)
		}
	}

	return nil
}

// ValidCkey reports whether value is a canonical ckey, lower case letters and digits only.
func ValidCkey(value string) bool {
	return reCkey.MatchString(value)
}

// ValidDiscordID reports whether value looks like a discord snowflake.
func ValidDiscordID(value string) bool {
	return reDiscordID.MatchString(value)
}

func ckeyValidator(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)

	return ok && ValidCkey(value)
}

func discordIDValidator(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)

	return ok && ValidDiscordID(value)
}

func useCors(engine *gin.Engine, origins []string, devMode bool) {
	engine.Use(useSecure(devMode))

	if len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
		corsConfig.ExposeHeaders = append(corsConfig.ExposeHeaders, "Retry-After")
		corsConfig.AllowWildcard = true

		engine.Use(cors.New(corsConfig))
	} else {
		slog.Debug("No cors origins defined, disabling")
	}
}

func usePrometheus(engine *gin.Engine) {
	prom := ginprom.New(func(prom *ginprom.Prometheus) {
		prom.Namespace = "central"
		prom.Subsystem = "http"
	})
	engine.Use(prom.Instrument())
}

func useSloggin(engine *gin.Engine, level log.Level, otelEnabled bool) {
	logConfig := sloggin.Config{
		DefaultLevel:     log.ToSlogLevel(level),
		ClientErrorLevel: log.ToSlogLevel(log.Warn),
		ServerErrorLevel: log.ToSlogLevel(log.Error),
	}

	if otelEnabled {
		logConfig.WithSpanID = true
		logConfig.WithTraceID = true
	}

	engine.Use(sloggin.NewWithConfig(slog.Default(), logConfig))
}
