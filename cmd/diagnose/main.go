package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"diagnosis-service/internal/client"
	"diagnosis-service/internal/features"
	"diagnosis-service/internal/logging"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:5000", "Diagnosis server base URL")
		inputFile   = flag.String("file", "", "JSON file with the field set (flags override its values)")
		logLevel    = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
		timeout     = flag.Duration("timeout", 5*time.Second, "Request timeout")
		showInfo    = flag.Bool("info", false, "Print model metadata instead of predicting")
		age         = flag.Int("age", 0, "Age in years")
		sex         = flag.String("sex", "", "Sex: M or F")
		temperature = flag.Int("temperature", 0, "Body temperature")
		heartRate   = flag.Int("heart-rate", 0, "Heart rate")
		diabetes    = flag.Bool("diabetes", false, "Diabetes comorbidity")
		htn         = flag.Bool("htn", false, "Hypertension comorbidity")
		symptoms    = flag.String("symptoms", "", "Comma-separated symptoms, e.g. fever,cough,sore_throat")
	)
	flag.Parse()

	if err := logging.Setup(*logLevel, "console"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	c := client.New(*baseURL, *timeout)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *showInfo {
		info, err := c.ModelInfo(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("model info request failed")
		}
		out, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(out))
		return
	}

	fields := map[string]any{}
	if *inputFile != "" {
		data, err := os.ReadFile(*inputFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", *inputFile).Msg("failed to read input file")
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			log.Fatal().Err(err).Str("file", *inputFile).Msg("input file is not a JSON object")
		}
	}

	// Only explicitly set flags override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "age":
			fields[features.FieldAge] = *age
		case "sex":
			fields[features.FieldSex] = *sex
		case "temperature":
			fields[features.FieldTemperature] = *temperature
		case "heart-rate":
			fields[features.FieldHeartRate] = *heartRate
		case "diabetes":
			fields[features.FieldComorbDiabetes] = boolFlag(*diabetes)
		case "htn":
			fields[features.FieldComorbHTN] = boolFlag(*htn)
		case "symptoms":
			for _, s := range strings.Split(*symptoms, ",") {
				name := "symptom_" + strings.TrimPrefix(strings.TrimSpace(s), "symptom_")
				if !features.IsSymptom(name) {
					log.Fatal().Str("symptom", s).Strs("known", features.Symptoms).Msg("unknown symptom")
				}
				fields[name] = 1
			}
		}
	})

	log.Debug().Interface("fields", fields).Msg("sending field set")

	resp, err := c.Predict(ctx, fields)
	if err != nil {
		log.Fatal().Err(err).Msg("prediction request failed")
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Rank", "Diagnosis", "Probability"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for i, p := range resp.Predictions {
		table.Append([]string{
			strconv.Itoa(i + 1),
			p.Diagnosis,
			strconv.FormatFloat(p.Probability, 'f', 4, 64),
		})
	}
	table.Render()
	fmt.Println()
	fmt.Println(resp.Disclaimer)
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
