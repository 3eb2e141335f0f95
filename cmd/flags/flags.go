// Package flags holds the CLI flags and logger setup shared by the deploy
// commands.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"github.com/warranty-register/deployctl/common"
	"github.com/warranty-register/deployctl/orchestrator"
)

// SetupLogger builds the process logger from the common logging flags.
func SetupLogger(cCtx *cli.Context) *slog.Logger {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJSONFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	})

	if cCtx.Bool(LogUIDFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ApplyOverrides copies explicitly set CLI flags over the environment-loaded
// configuration. Flags win over environment variables.
func ApplyOverrides(cCtx *cli.Context, cfg *orchestrator.Config) {
	if cCtx.IsSet(ComposeFileFlag.Name) {
		cfg.ComposeFile = cCtx.String(ComposeFileFlag.Name)
	}
	if cCtx.IsSet(EnvFileFlag.Name) {
		cfg.EnvFile = cCtx.String(EnvFileFlag.Name)
	}
	if cCtx.IsSet(StateDirFlag.Name) {
		cfg.StateDir = cCtx.String(StateDirFlag.Name)
	}
	if cCtx.IsSet(CertRootFlag.Name) {
		cfg.CertRoot = cCtx.String(CertRootFlag.Name)
	}
	if cCtx.IsSet(WebrootFlag.Name) {
		cfg.WebrootPath = cCtx.String(WebrootFlag.Name)
	}
	if cCtx.IsSet(ProxyConfFlag.Name) {
		cfg.ProxyConfPath = cCtx.String(ProxyConfFlag.Name)
	}
	if cCtx.IsSet(APIHealthURLFlag.Name) {
		cfg.APIHealthURL = cCtx.String(APIHealthURLFlag.Name)
	}
	if cCtx.IsSet(ACMEURLFlag.Name) {
		cfg.ACMEDirectoryURL = cCtx.String(ACMEURLFlag.Name)
	}
	if cCtx.IsSet(ACMEStagingFlag.Name) {
		cfg.ACMEStaging = cCtx.Bool(ACMEStagingFlag.Name)
	}
	if cCtx.IsSet(RenewBeforeFlag.Name) {
		cfg.RenewBefore = cCtx.Duration(RenewBeforeFlag.Name)
	}
	if cCtx.IsSet(ForceRenewalFlag.Name) {
		cfg.ForceRenewal = cCtx.Bool(ForceRenewalFlag.Name)
	}
	if cCtx.IsSet(AdvisoryHealthFlag.Name) {
		cfg.AdvisoryHealth = cCtx.Bool(AdvisoryHealthFlag.Name)
	}
	if cCtx.IsSet(RegenerateCredentialsFlag.Name) {
		cfg.RegenerateCredentials = cCtx.Bool(RegenerateCredentialsFlag.Name)
	}
	if cCtx.IsSet(ArchiveURIFlag.Name) {
		cfg.ArchiveURIs = cCtx.StringSlice(ArchiveURIFlag.Name)
	}
	if cCtx.IsSet(OpsAddrFlag.Name) {
		cfg.OpsAddr = cCtx.String(OpsAddrFlag.Name)
	}
}

var LogJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "deployctl",
	Usage: "add 'service' tag to logs",
}

var ComposeFileFlag = &cli.StringFlag{
	Name:  "compose-file",
	Usage: "compose definition to manage services through",
}
var EnvFileFlag = &cli.StringFlag{
	Name:  "env-file",
	Usage: "path of the generated credential file",
}
var StateDirFlag = &cli.StringFlag{
	Name:  "state-dir",
	Usage: "directory for the deployment lock and ACME account key",
}
var CertRootFlag = &cli.StringFlag{
	Name:  "cert-root",
	Usage: "certificate material root (material lives at <root>/live/<domain>/)",
}
var WebrootFlag = &cli.StringFlag{
	Name:  "webroot",
	Usage: "directory the proxy serves ACME HTTP-01 challenges from",
}
var ProxyConfFlag = &cli.StringFlag{
	Name:  "proxy-conf",
	Usage: "path the rendered nginx server config is written to",
}
var APIHealthURLFlag = &cli.StringFlag{
	Name:  "api-health-url",
	Usage: "liveness endpoint checked before certificate issuance",
}
var ACMEURLFlag = &cli.StringFlag{
	Name:  "acme-url",
	Usage: "ACME directory URL (overrides --acme-staging)",
}
var ACMEStagingFlag = &cli.BoolFlag{
	Name:  "acme-staging",
	Usage: "use the Let's Encrypt staging directory",
}
var RenewBeforeFlag = &cli.DurationFlag{
	Name:  "renew-before",
	Usage: "remaining validity under which an existing certificate is renewed",
}
var ForceRenewalFlag = &cli.BoolFlag{
	Name:  "force-renewal",
	Usage: "request issuance even when valid material exists",
}
var AdvisoryHealthFlag = &cli.BoolFlag{
	Name:  "advisory-health",
	Usage: "warn instead of abort when the pre-issuance health check fails",
}
var RegenerateCredentialsFlag = &cli.BoolFlag{
	Name:  "regenerate-credentials",
	Usage: "overwrite an existing credential file with fresh secrets",
}
var ArchiveURIFlag = &cli.StringSliceFlag{
	Name:  "archive-uri",
	Usage: "storage backend URI to archive artifacts to (file://, s3://, vault://); repeatable",
}
var OpsAddrFlag = &cli.StringFlag{
	Name:  "ops-addr",
	Usage: "listen address for the ops server (/livez, /readyz, /status); empty disables it",
}

// CommonFlags are accepted by every command.
var CommonFlags = []cli.Flag{
	LogJSONFlag,
	LogDebugFlag,
	LogUIDFlag,
	LogServiceFlag,
}

var WatchFlag = &cli.BoolFlag{
	Name:  "watch",
	Usage: "keep running and re-check renewal on an interval",
}
var WatchIntervalFlag = &cli.DurationFlag{
	Name:  "watch-interval",
	Value: 12 * time.Hour,
	Usage: "interval between renewal checks in watch mode",
}

// DeployFlags configure a deployment or renewal run.
var DeployFlags = []cli.Flag{
	ComposeFileFlag,
	EnvFileFlag,
	StateDirFlag,
	CertRootFlag,
	WebrootFlag,
	ProxyConfFlag,
	APIHealthURLFlag,
	ACMEURLFlag,
	ACMEStagingFlag,
	RenewBeforeFlag,
	ForceRenewalFlag,
	AdvisoryHealthFlag,
	RegenerateCredentialsFlag,
	ArchiveURIFlag,
	OpsAddrFlag,
}
