package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"temporal-sa/rsa-oaep-codec/auth"
	"temporal-sa/rsa-oaep-codec/codec"
	"temporal-sa/rsa-oaep-codec/config"
	"temporal-sa/rsa-oaep-codec/metrics"
	"temporal-sa/rsa-oaep-codec/transport"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	publicKeyFlag  = "public-key"
	privateKeyFlag = "private-key"
	algorithmFlag  = "algorithm"
	hashFlag       = "hash"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rsacodec",
		Usage: "RSA-OAEP text and Temporal payload codec",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    config.ConfigPathFlag,
				Usage:   "config file",
				Aliases: []string{"c"},
				Value:   config.DefaultConfigPath,
			},
			&cli.StringFlag{
				Name:  config.LogLevelFlag,
				Usage: "log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "encrypt",
				Usage:     "encrypt text and print lowercase hex ciphertext",
				ArgsUsage: "[plaintext | -]",
				Flags:     keyFlags(publicKeyFlag, "PEM encoded SPKI public key file"),
				Action:    encrypt,
			},
			{
				Name:      "decrypt",
				Usage:     "decrypt hex ciphertext and print the plaintext",
				ArgsUsage: "[ciphertext | -]",
				Flags:     keyFlags(privateKeyFlag, "PEM encoded PKCS#8 private key file"),
				Action:    decrypt,
			},
			{
				Name:   "serve",
				Usage:  "run the codec HTTP server",
				Action: serve,
			},
		},
	}
}

func keyFlags(name, usage string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    name,
			Usage:   usage + ", overrides the config file",
			Aliases: []string{"k"},
		},
		&cli.StringFlag{
			Name:  algorithmFlag,
			Usage: "RSA-OAEP or RSA-OAEP-256",
		},
		&cli.StringFlag{
			Name:  hashFlag,
			Usage: "OAEP digest (SHA-1, SHA-256, SHA-384, SHA-512)",
		},
	}
}

func encrypt(c *cli.Context) error {
	textCodec, closeCodec, err := newTextCodec(c, publicKeyFlag)
	if err != nil {
		return err
	}
	defer closeCodec()

	plaintext, err := readInput(c)
	if err != nil {
		return err
	}

	ciphertext, err := textCodec.EncryptText(c.Context, plaintext)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.App.Writer, ciphertext)
	return err
}

func decrypt(c *cli.Context) error {
	textCodec, closeCodec, err := newTextCodec(c, privateKeyFlag)
	if err != nil {
		return err
	}
	defer closeCodec()

	ciphertext, err := readInput(c)
	if err != nil {
		return err
	}

	plaintext, err := textCodec.DecryptText(c.Context, strings.TrimSpace(ciphertext))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.App.Writer, plaintext)
	return err
}

// newTextCodec builds a codec from the key flag when present and from the config file otherwise
func newTextCodec(c *cli.Context, keyFlag string) (*codec.Codec, func(), error) {
	var codecConfig config.CodecConfig

	if keyFile := c.String(keyFlag); keyFile != "" {
		encryptionConfig := config.EncryptionConfig{
			KeySource: config.KeySourceLocal,
			Algorithm: c.String(algorithmFlag),
			Hash:      c.String(hashFlag),
		}
		if keyFlag == publicKeyFlag {
			encryptionConfig.PublicKey = &config.KeyRef{File: keyFile}
		} else {
			encryptionConfig.PrivateKey = &config.KeyRef{File: keyFile}
		}

		codecConfig.Encryption = encryptionConfig
		codecConfig.ApplyDefaults()
		if err := codecConfig.Validate(); err != nil {
			return nil, nil, err
		}
	} else {
		var err error
		if codecConfig, err = config.LoadConfig(c.String(config.ConfigPathFlag)); err != nil {
			return nil, nil, err
		}
	}

	factory, err := codec.NewEncryptionCodecFactory(codecConfig.Encryption.Caching)
	if err != nil {
		return nil, nil, err
	}

	textCodec, err := factory.NewEncryptionCodec(c.Context, codec.EncryptionCodecOptions{
		EncryptionConfig: codecConfig.Encryption,
	})
	if err != nil {
		_ = factory.Close()
		return nil, nil, err
	}

	return textCodec, func() { _ = factory.Close() }, nil
}

// readInput returns the positional argument verbatim, or stdin without its final line ending
func readInput(c *cli.Context) (string, error) {
	if arg := c.Args().First(); arg != "" && arg != "-" {
		return arg, nil
	}

	input, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	text := string(input)
	if strings.HasSuffix(text, "\r\n") {
		return strings.TrimSuffix(text, "\r\n"), nil
	}
	return strings.TrimSuffix(text, "\n"), nil
}

func serve(c *cli.Context) error {
	logger, err := newLogger(c.String(config.LogLevelFlag))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app := fx.New(
		fx.Supply(c, logger),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		config.Module,
		metrics.Module,
		auth.Module,
		codec.Module,
		transport.Module,
		fx.Invoke(func(transport.TransportProvider, metrics.MetricsProvider) {}),
	)

	startCtx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	shutdown := <-app.Wait()
	logger.Info("shutting down", zap.Stringer("signal", shutdown))

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return app.Stop(stopCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
