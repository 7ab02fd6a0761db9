package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"smartwallet/cmd/internal/passphrase"
	"smartwallet/config"
	"smartwallet/core"
	"smartwallet/core/types"
	"smartwallet/crypto"
	"smartwallet/native/account"
	"smartwallet/native/dapp"
	"smartwallet/native/multisig"
	"smartwallet/native/proxy"
	"smartwallet/native/session"
	"smartwallet/observability/logging"
	"smartwallet/observability/otel"
	"smartwallet/storage"
)

const serviceName = "walletctl"

var (
	selSetNumber      = types.SelectorFromName("set_number")
	selSetNumberTwice = types.SelectorFromName("set_number_double")
	selIncreaseNumber = types.SelectorFromName("increase_number")
	selGetNumber      = types.SelectorFromName("get_number")
	selAddPlugin      = types.SelectorFromName("addPlugin")
)

type demoOptions struct {
	// Signer is the account signer; nil generates an ephemeral key.
	Signer   *crypto.PrivateKey
	InMemory bool
	Now      func() time.Time
}

type demoReport struct {
	RunID     string     `json:"runId"`
	ChainID   string     `json:"chainId"`
	Account   string     `json:"account"`
	Signer    string     `json:"signer"`
	Guardian  string     `json:"guardian"`
	Dapp      string     `json:"dapp"`
	Steps     []demoStep `json:"steps"`
	StateRoot string     `json:"stateRoot"`
}

type demoStep struct {
	Name   string `json:"name"`
	TxHash string `json:"txHash"`
	Status string `json:"status"`
	Number uint64 `json:"number"`
}

func runDemo(args []string) error {
	fs := newFlagSet(demoCommand)
	configPath := fs.String("config", defaultConfig, "Path to the walletctl config file")
	useKeystore := fs.Bool("keystore", false, "Use the configured keystore as the account signer")
	inMemory := fs.Bool("memory", false, "Keep ledger state in memory instead of DataDir")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.SetupWithOptions(serviceName, logging.Options{
		Env:        cfg.Logging.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx := context.Background()
	telemetry := otel.Config{
		ServiceName: serviceName,
		Environment: cfg.Logging.Env,
		ChainID:     cfg.ChainID,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	}
	if telemetry.Enabled() {
		shutdown, err := otel.Init(ctx, telemetry)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	opts := demoOptions{InMemory: *inMemory}
	if *useKeystore {
		secret, err := passphrase.NewSource(cfg.Keystore.PassEnv).Get()
		if err != nil {
			return err
		}
		opts.Signer, err = crypto.LoadFromKeystore(cfg.Keystore.Path, secret)
		if err != nil {
			return fmt.Errorf("load keystore %s: %w", cfg.Keystore.Path, err)
		}
	}

	report, err := demo(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// demoRun holds the ledger and keys shared by the demo steps.
type demoRun struct {
	ledger   *core.Ledger
	logger   *slog.Logger
	account  types.Address
	dapp     types.Address
	signer   *crypto.PrivateKey
	guardian *crypto.PrivateKey
	report   *demoReport
}

// demo declares the wallet classes, deploys a proxied account guarded by a
// fresh guardian key and walks it through a plain call, a smart multicall and
// a session-key transaction.
func demo(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts demoOptions) (*demoReport, error) {
	period, err := cfg.SecurityPeriodDuration()
	if err != nil {
		return nil, err
	}

	var db storage.Database
	if opts.InMemory {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
		if err != nil {
			return nil, fmt.Errorf("open state: %w", err)
		}
		db = ldb
	}
	defer db.Close()

	ledger, err := core.NewLedger(db, cfg.ChainID)
	if err != nil {
		return nil, err
	}
	ledger.SetLogger(logger)
	if opts.Now != nil {
		ledger.SetNowFunc(opts.Now)
	}

	accountClass, err := ledger.Declare(account.New(account.WithSecurityPeriod(period)))
	if err != nil {
		return nil, err
	}
	proxyClass, err := ledger.Declare(proxy.New())
	if err != nil {
		return nil, err
	}
	dappClass, err := ledger.Declare(dapp.New())
	if err != nil {
		return nil, err
	}
	sessionClass, err := ledger.Declare(session.New())
	if err != nil {
		return nil, err
	}
	if _, err := ledger.Declare(multisig.New()); err != nil {
		return nil, err
	}

	runID := uuid.New()
	logger = logger.With(slog.String("run_id", runID.String()))
	var salt types.Word
	salt.SetBytes(runID[:])

	signer := opts.Signer
	if signer == nil {
		if signer, err = crypto.GeneratePrivateKey(); err != nil {
			return nil, err
		}
		logger.Warn("using ephemeral signer key")
	}
	guardian, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	dappAddr, err := ledger.Deploy(ctx, dappClass, salt, nil)
	if err != nil {
		return nil, fmt.Errorf("deploy dapp: %w", err)
	}
	ctor := proxy.ConstructorCalldata(accountClass, account.InitializeSelector, []types.Word{
		types.AddressWord(signer.Address()),
		types.AddressWord(guardian.Address()),
	})
	acct, err := ledger.Deploy(ctx, proxyClass, salt, ctor)
	if err != nil {
		return nil, fmt.Errorf("deploy account: %w", err)
	}

	run := &demoRun{
		ledger:   ledger,
		logger:   logger,
		account:  acct,
		dapp:     dappAddr,
		signer:   signer,
		guardian: guardian,
		report: &demoReport{
			RunID:   runID.String(),
			ChainID: cfg.ChainID,
			Dapp:    dappAddr.Hex(),
		},
	}
	if run.report.Account, err = crypto.EncodeAddress(crypto.AccountPrefix, acct); err != nil {
		return nil, err
	}
	if run.report.Signer, err = crypto.EncodeAddress(crypto.KeyPrefix, signer.Address()); err != nil {
		return nil, err
	}
	if run.report.Guardian, err = crypto.EncodeAddress(crypto.KeyPrefix, guardian.Address()); err != nil {
		return nil, err
	}
	logger.Info("account deployed",
		slog.String("account", acct.Hex()),
		slog.String("implementation", accountClass.Hex()))

	owners := []*crypto.PrivateKey{signer, guardian}
	if err := run.step(ctx, "set_number", types.EncodeCalls([]types.Call{
		{To: dappAddr, Selector: selSetNumber, Calldata: []types.Word{types.NewWord(42)}},
	}), owners...); err != nil {
		return nil, err
	}

	if err := run.step(ctx, "smart_multicall", account.EncodeSmartMulticall([]account.SmartCall{
		{To: dappAddr, Selector: selIncreaseNumber, Args: []account.Arg{account.Value(types.NewWord(8))}},
		{To: dappAddr, Selector: selSetNumberTwice, Args: []account.Arg{account.Ref(0)}},
	}), owners...); err != nil {
		return nil, err
	}

	if err := run.step(ctx, "install_session_plugin", types.EncodeCalls([]types.Call{
		{To: acct, Selector: selAddPlugin, Calldata: []types.Word{types.ClassHashWord(sessionClass)}},
	}), owners...); err != nil {
		return nil, err
	}

	if err := run.sessionStep(ctx, sessionClass); err != nil {
		return nil, err
	}

	run.report.StateRoot = ledger.StateRoot().Hex()
	return run.report, nil
}

func (r *demoRun) sessionStep(ctx context.Context, plugin types.ClassHash) error {
	policy, err := session.BuildPolicy([]session.AllowedCall{
		{Contract: r.dapp, Selector: selSetNumber},
		{Contract: r.dapp, Selector: selIncreaseNumber},
	})
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	s := session.Session{
		Key:     key.Address(),
		Expires: r.ledger.Now() + uint64(time.Hour/time.Second),
		Root:    policy.Root,
	}
	token, err := s.Sign(r.signer, r.ledger.ChainID(), r.account)
	if err != nil {
		return err
	}
	calls, err := policy.Batch(r.account, plugin, s, token, []types.Call{
		{To: r.dapp, Selector: selIncreaseNumber, Calldata: []types.Word{types.NewWord(1)}},
	})
	if err != nil {
		return err
	}
	return r.step(ctx, "session_key", types.EncodeCalls(calls), key)
}

// step signs calldata with keys, submits it and records the resulting
// counter value. A reverted receipt aborts the demo.
func (r *demoRun) step(ctx context.Context, name string, calldata []types.Word, keys ...*crypto.PrivateKey) error {
	nonce, err := r.ledger.Nonce(r.account)
	if err != nil {
		return err
	}
	tx := &types.Transaction{
		Account:  r.account,
		Calldata: calldata,
		Nonce:    nonce,
		Version:  types.TransactionVersion,
	}
	digest := tx.Digest(r.ledger.ChainID())
	for _, k := range keys {
		sig, err := k.Sign(digest)
		if err != nil {
			return err
		}
		tx.Signature = append(tx.Signature, sig.Words()...)
	}

	receipt, err := r.ledger.Submit(ctx, tx)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if receipt.Status != types.ReceiptSucceeded {
		return fmt.Errorf("%s reverted: %s", name, receipt.RevertReason)
	}
	ret, err := r.ledger.Call(r.dapp, selGetNumber, []types.Word{types.AddressWord(r.account)})
	if err != nil {
		return err
	}
	r.logger.Info("demo step committed",
		slog.String("step", name),
		slog.String("tx_hash", receipt.TxHash.Hex()),
		slog.Uint64("number", ret[0].Uint64()))
	r.report.Steps = append(r.report.Steps, demoStep{
		Name:   name,
		TxHash: receipt.TxHash.Hex(),
		Status: receipt.Status.String(),
		Number: ret[0].Uint64(),
	})
	return nil
}
