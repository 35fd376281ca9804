// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupStatus,
			},
		},
	}
}

// serveCommand starts the HTTP API and web frontend.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the ChordyPi HTTP server",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Override the listen host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override the listen port",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the app in the default browser",
			},
		},
		Action: r.Serve,
	}
}

// chordsCommand handles the built-in chord table.
func chordsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chords",
		Usage: "Look up chord progressions",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List songs in the chord table",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.ChordsList,
			},
			{
				Name:  "lookup",
				Usage: "Print a song's progression",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					&cli.FloatFlag{
						Name:    "duration",
						Aliases: []string{"d"},
						Usage:   "Repeat the progression to cover this many seconds",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, markdown, csv or json",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the sheet to a file instead of stdout",
					},
				},
				Action: r.ChordsLookup,
			},
			{
				Name:  "midi",
				Usage: "Export a song's progression as a MIDI file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (defaults to <title>.mid)",
					},
				},
				Action: r.ChordsMIDI,
			},
		},
	}
}

// audioCommand handles local WAV processing.
func audioCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "audio",
		Usage: "Encode, inspect and analyze audio files",
		Commands: []*cli.Command{
			{
				Name:  "encode",
				Usage: "Convert audio to a trimmed, resampled 16-bit WAV",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output WAV path",
						Required: true,
					},
					&cli.FloatFlag{
						Name:  "max-seconds",
						Usage: "Trim to this many seconds (defaults to analysis.max_duration_seconds)",
					},
					&cli.IntFlag{
						Name:  "rate",
						Usage: "Target sample rate (defaults to analysis.target_sample_rate)",
					},
				},
				Action: r.AudioEncode,
			},
			{
				Name:  "info",
				Usage: "Show WAV format details",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.AudioInfo,
			},
			{
				Name:  "analyze",
				Usage: "Detect chords in a WAV file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.AudioAnalyze,
			},
		},
	}
}

// extractCommand runs the yt-dlp download and upload pipeline.
func extractCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Download audio from one or more URLs and analyze it on a ChordyPi server",
		ArgsUsage: "<url> [url...]",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "song",
				Usage: "Song name sent with the upload (single URL only)",
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "ChordyPi server URL (defaults to analysis.server_url)",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Pi uid the analysis counts against",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Parallel extractions for batches",
				Value: 2,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Extractions started per second for batches (0 disables)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Extract,
	}
}

// premiumCommand inspects and grants premium features.
func premiumCommand(r *Runner) *cli.Command {
	userFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "Pi uid",
			Required: true,
		}
	}

	return &cli.Command{
		Name:  "premium",
		Usage: "Premium feature administration",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show a user's unlocked features and analysis usage",
				Flags: []cli.Flag{
					configFlag(),
					userFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.PremiumStatus,
			},
			{
				Name:  "unlock",
				Usage: "Grant a premium feature without a payment",
				Flags: []cli.Flag{
					configFlag(),
					userFlag(),
					&cli.StringFlag{
						Name:     "feature",
						Aliases:  []string{"f"},
						Usage:    "Feature to unlock",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "payment",
						Usage: "Payment id recorded with the unlock",
					},
				},
				Action: r.PremiumUnlock,
			},
			{
				Name:   "catalog",
				Usage:  "List premium features and prices",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.PremiumCatalog,
			},
		},
	}
}

// apiCommand handles direct calls to a running ChordyPi server
func apiCommand(r *Runner) *cli.Command {
	pathArg := func() []cli.Argument { return []cli.Argument{&cli.StringArg{Name: "path"}} }
	userFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:  "user",
			Usage: "Pi uid sent as X-Pi-User (honoured by sandbox servers only)",
		}
	}

	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to a ChordyPi server",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Direct GET, prints raw JSON",
				Arguments: pathArg(),
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "Direct POST with JSON body",
				Arguments: pathArg(),
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:      "delete",
				Usage:     "Direct DELETE with JSON body",
				Arguments: pathArg(),
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON body to send",
					},
				},
				Action: r.APIDelete,
			},
		},
	}
}

// tuiCommand launches the terminal chord player.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Play chord progressions in the terminal",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "Seconds each song plays for (0 plays one pass)",
				Value:   120,
			},
		},
		Action: r.TUI,
	}
}
