package main

import (
	"flag"
	"log"

	"github.com/danmuck/geordon/internal/config"
)

func main() {
	output := flag.String("output", "geordon.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "geordon.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		file, err := config.Load(*input)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := config.Resolve(file); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated geordon config at %s", *input)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote geordon config template to %s", *output)
}
