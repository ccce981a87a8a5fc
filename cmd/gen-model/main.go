package main

import (
	"compress/gzip"
	"encoding/json"
	"flag"
	"io"
	"os"
	"strings"

	"diagnosis-service/internal/logging"
	"diagnosis-service/internal/ml"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		outPath  = flag.String("out", "rf_diagnosis_model.json", "Output path; a .gz suffix writes gzip")
		indent   = flag.Bool("indent", false, "Indent the JSON output")
		logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	if err := logging.Setup(*logLevel, "console"); err != nil {
		log.Fatal().Err(err).Msg("logging setup failed")
	}

	forest := ml.SyntheticForest()

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *outPath).Msg("failed to create output")
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(*outPath, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	enc := json.NewEncoder(w)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(forest); err != nil {
		log.Fatal().Err(err).Msg("failed to encode forest")
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			log.Fatal().Err(err).Msg("failed to finish gzip stream")
		}
	}

	meta := forest.Metadata()
	log.Info().
		Str("path", *outPath).
		Str("version", meta.Version).
		Int("trees", meta.Trees).
		Strs("classes", meta.Classes).
		Msg("model written")
}
