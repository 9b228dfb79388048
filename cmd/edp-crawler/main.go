// Command edp-crawler is the function starting the schema crawler.
package main

import (
	"log"
	"os"

	"github.com/jaffee/commandeer/pflag"

	"github.com/featurebasedb/edp/crawler"
	"github.com/featurebasedb/edp/logger"
)

func logFailure(m *crawler.Main, v interface{}, panicked bool) {
	log := m.Log()
	if log == nil {
		log = logger.NewStandardLogger(os.Stderr)
	}
	if panicked {
		log.Panicf("Panic running command: %+v", v)
	} else {
		log.Errorf("Error running command: %+v", v)
	}
}

func main() {
	m := crawler.NewMain()
	if err := pflag.LoadEnv(m, "EDP_CRAWLER_", nil); err != nil {
		log.Fatal(err)
	}

	// Capture any panic and log it before dying.
	defer func() {
		if r := recover(); r != nil {
			logFailure(m, r, true)
			os.Exit(1)
		}
	}()

	if m.DryRun {
		log.Printf("%+v\n", m)
		return
	}

	if err := m.Run(); err != nil {
		logFailure(m, err, false)
		os.Exit(1)
	}
}
