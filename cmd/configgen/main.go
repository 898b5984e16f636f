package main

import (
	"flag"
	"log"

	"github.com/nicolas-rempulski/h-ubu/internal/config"
)

const defaultPath = "cmd/hubctl/config.toml"

func main() {
	kind := flag.String("kind", "hub", "template kind: hub|minimal")
	output := flag.String("output", defaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.LoadHubConfig(*input)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated hub config %q at %s", cfg.Name, *input)
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, *output)
}
