package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billygk/perpx/internal/cancel"
	"github.com/billygk/perpx/internal/config"
	"github.com/billygk/perpx/internal/engine"
	"github.com/billygk/perpx/internal/logger"
	"github.com/billygk/perpx/internal/market/bybit"
	"github.com/billygk/perpx/internal/models"
	"github.com/billygk/perpx/internal/storage"
	"github.com/billygk/perpx/internal/telegram"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// inputDocument is the JSON shape read from stdin or -input: the union of
// keys_dict/order_dict/tpsl_dict/demo/max_wait_seconds produced externally
// by the inbox trigger and tier calculator.
type inputDocument struct {
	KeysDict map[string]struct {
		APIKey    string `json:"api_key"`
		APISecret string `json:"api_secret"`
	} `json:"keys_dict"`
	OrderDict struct {
		Coin     string `json:"coin"`
		Side     string `json:"side"`
		Leverage int    `json:"leverage"`
		Qty1     string `json:"qty1"`
		Qty2     string `json:"qty2"`
		Qty3     string `json:"qty3"`
		Limit1   string `json:"limit1"`
		Limit2   string `json:"limit2"`
		Limit3   string `json:"limit3"`
	} `json:"order_dict"`
	TPSLDict struct {
		Symbol string `json:"symbol"`
		TP1    string `json:"tp1"`
		SL1    string `json:"sl1"`
		TP2    string `json:"tp2"`
		SL2    string `json:"sl2"`
		TP3    string `json:"tp3"`
		SL3    string `json:"sl3"`
	} `json:"tpsl_dict"`
	Demo           bool `json:"demo"`
	MaxWaitSeconds int  `json:"max_wait_seconds"`
}

func main() {
	inputPath := flag.String("input", "", "path to the run input JSON document (defaults to stdin)")
	credsPath := flag.String("credentials", "", "path to a keys_dict JSON file, overriding the input document's keys_dict")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup("executor.log", cfg.MaxLogSizeMB, cfg.MaxLogBackups, cfg.LogLevel)

	doc, err := readInput(*inputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read run input document")
	}

	instr, err := buildInstruction(doc)
	if err != nil {
		log.Fatal().Err(err).Msg("run input document failed validation")
	}

	var credentials []models.Credentials
	if *credsPath != "" {
		credentials, err = config.LoadCredentials(*credsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load credentials file")
		}
	} else {
		credentials, err = credentialsFromKeysDict(doc.KeysDict)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse keys_dict from input document")
		}
	}

	host := cfg.ProdHost
	if instr.Demo {
		host = cfg.DemoHost
	}

	signal_ := cancel.New()
	stopAdapters := make(chan struct{})
	go cancel.StdinAdapter(os.Stdin, signal_, log)

	var notifier *telegram.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifier, err = telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Warn().Err(err).Msg("telegram notifier unavailable, continuing without notifications")
		}
		listener, err := telegram.NewListener(cfg.TelegramBotToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Warn().Err(err).Msg("telegram listener unavailable, cancel via telegram disabled")
		} else {
			go cancel.TelegramAdapter(listener, signal_, stopAdapters, log)
		}
	}

	ctx, stopSigHandling := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSigHandling()

	// PublicTime needs no signed transport, so the Time Anchor is resolved
	// against an unsigned client before the real Signer (which requires the
	// anchor up front) is built.
	unsignedProbe := bybit.NewClient(nil, host)
	anchor := bybit.NewTimeAnchor(ctx, cfg.TimeAnchorServers, unsignedProbe.PublicTime, log)
	if offset := anchor.OffsetMS(); offset > cfg.RecvWindowMS || offset < -cfg.RecvWindowMS {
		log.Warn().Int64("offset_ms", offset).Int64("recv_window_ms", cfg.RecvWindowMS).
			Msg("time anchor offset exceeds receive window, proceeding anyway")
	}

	bybitSigner := bybit.NewSigner(host, cfg.RecvWindowMS, anchor, cfg.RateLimitSpacing, log)
	venue := bybit.NewClient(bybitSigner, host)

	runID := uuid.NewString()
	runCfg := engine.Config{
		DetectorPollPeriod: cfg.DetectorPollPeriod,
		MonitorPollPeriod:  cfg.MonitorPollPeriod,
		ControllerTick:     cfg.ControllerTick,
		InterTierPause:     cfg.InterTierPause,
	}

	run := engine.NewRun(runID, instr, credentials, venue, signal_, runCfg, log)

	if notifier != nil {
		notifier.Notify(fmt.Sprintf("run %s started: %s %s across %d accounts", runID, instr.Side, instr.Symbol, len(credentials)))
	}

	startedAt := time.Now().UTC()
	accountSummaries := run.Execute(ctx)
	finishedAt := time.Now().UTC()
	close(stopAdapters)

	runSummary := models.RunSummary{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Accounts:   accountSummaries,
	}

	if notifier != nil {
		notifier.Notify(summaryHeadline(runSummary))
	}

	if err := storage.ArchiveRun(cfg.ArchiveDir, runSummary, log); err != nil {
		log.Error().Err(err).Msg("failed to archive run summary")
	}

	out, err := json.MarshalIndent(runSummary, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to marshal run summary")
	}
	fmt.Println(string(out))
}

func readInput(path string) (inputDocument, error) {
	var r io.Reader
	if path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return inputDocument{}, fmt.Errorf("opening input file %q: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var doc inputDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return inputDocument{}, fmt.Errorf("decoding input document: %w", err)
	}
	return doc, nil
}

func credentialsFromKeysDict(keysDict map[string]struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}) ([]models.Credentials, error) {
	if len(keysDict) == 0 {
		return nil, fmt.Errorf("keys_dict defines no accounts")
	}
	names := make([]string, 0, len(keysDict))
	for name := range keysDict {
		names = append(names, name)
	}
	sortStrings(names)

	out := make([]models.Credentials, 0, len(names))
	for _, name := range names {
		entry := keysDict[name]
		if entry.APIKey == "" || entry.APISecret == "" {
			return nil, fmt.Errorf("account %q is missing api_key or api_secret", name)
		}
		out = append(out, models.Credentials{Name: name, APIKey: entry.APIKey, APISecret: entry.APISecret})
	}
	return out, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// buildInstruction assembles a models.TradeInstruction from the three
// external dicts (spec §6), parsing decimal strings with shopspring/decimal
// so the same values the JSON document carries are used verbatim in
// signing and order placement.
func buildInstruction(doc inputDocument) (models.TradeInstruction, error) {
	qty := [3]string{doc.OrderDict.Qty1, doc.OrderDict.Qty2, doc.OrderDict.Qty3}
	limit := [3]string{doc.OrderDict.Limit1, doc.OrderDict.Limit2, doc.OrderDict.Limit3}
	tp := [3]string{doc.TPSLDict.TP1, doc.TPSLDict.TP2, doc.TPSLDict.TP3}
	sl := [3]string{doc.TPSLDict.SL1, doc.TPSLDict.SL2, doc.TPSLDict.SL3}

	var instr models.TradeInstruction
	instr.Symbol = doc.OrderDict.Coin
	if instr.Symbol == "" {
		instr.Symbol = doc.TPSLDict.Symbol
	}
	instr.Side = models.Side(doc.OrderDict.Side)
	instr.Leverage = doc.OrderDict.Leverage
	instr.Demo = doc.Demo
	instr.MaxWaitSeconds = doc.MaxWaitSeconds

	for i := 0; i < models.TierCount; i++ {
		q, err := decimal.NewFromString(qty[i])
		if err != nil {
			return instr, fmt.Errorf("tier %d qty %q: %w", i+1, qty[i], err)
		}
		l, err := decimal.NewFromString(limit[i])
		if err != nil {
			return instr, fmt.Errorf("tier %d limit_price %q: %w", i+1, limit[i], err)
		}
		instr.Tiers[i] = models.Tier{Qty: q, LimitPrice: l}

		tpVal, err := decimal.NewFromString(tp[i])
		if err != nil {
			return instr, fmt.Errorf("tier %d tp %q: %w", i+1, tp[i], err)
		}
		slVal, err := decimal.NewFromString(sl[i])
		if err != nil {
			return instr, fmt.Errorf("tier %d sl %q: %w", i+1, sl[i], err)
		}
		instr.Protections[i] = models.Protection{TakeProfit: tpVal, StopLoss: slVal}
	}

	if err := instr.Validate(); err != nil {
		return instr, err
	}
	return instr, nil
}

func summaryHeadline(summary models.RunSummary) string {
	filled, canceled, timeouts, cancels := 0, 0, 0, 0
	for _, acc := range summary.Accounts {
		filled += len(acc.Filled)
		canceled += len(acc.Canceled)
		if acc.Timeout {
			timeouts++
		}
		if acc.UserCancel {
			cancels++
		}
	}
	return fmt.Sprintf("run %s finished: %d accounts, %d tiers filled, %d canceled, %d timeouts, %d user-cancels",
		summary.RunID, len(summary.Accounts), filled, canceled, timeouts, cancels)
}
