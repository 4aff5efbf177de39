package main

import (
	"flag"
	"log"

	"github.com/viewctl/viewctl/internal/config"
)

func main() {
	kind := flag.String("kind", "coordinator", "config kind: coordinator|viewer")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			switch *kind {
			case "coordinator":
				path = "cmd/viewctl/config.toml"
			case "viewer":
				path = "cmd/viewersim/config.toml"
			default:
				log.Fatalf("unknown kind: %s", *kind)
			}
		}

		switch *kind {
		case "coordinator":
			if _, err := config.LoadCoordinatorConfig(path); err != nil {
				log.Fatal(err)
			}
		case "viewer":
			if _, err := config.LoadViewerConfig(path); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "coordinator":
			target = "cmd/viewctl/config.toml"
		case "viewer":
			target = "cmd/viewersim/config.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
