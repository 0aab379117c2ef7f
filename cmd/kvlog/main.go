// Command kvlog is an interactive shell over a kvlog data directory.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"kvlog/config"
	"kvlog/store"
)

func main() {
	dataDir := flag.String("data", "data", "data directory")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	dir := *dataDir
	opts := store.DefaultOptions()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		dir = cfg.Store.DataDir
		opts = cfg.StoreOptions()
	}

	kv, err := store.Open(dir, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	fmt.Printf("kvlog shell on %s (type help for instructions)\n", kv.Dir())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 3)

		switch parts[0] {
		case "set":
			if len(parts) < 3 {
				fmt.Println("Usage: set <key> <value>")
				continue
			}
			if err := kv.Set([]byte(parts[1]), []byte(parts[2])); err != nil {
				fmt.Println(render(err))
				continue
			}
			fmt.Println("OK")

		case "get":
			if len(parts) < 2 {
				fmt.Println("Usage: get <key>")
				continue
			}
			value, err := kv.Get([]byte(parts[1]))
			if err != nil {
				fmt.Println(render(err))
				continue
			}
			fmt.Println(string(value))

		case "delete":
			if len(parts) < 2 {
				fmt.Println("Usage: delete <key>")
				continue
			}
			if err := kv.Delete([]byte(parts[1])); err != nil {
				fmt.Println(render(err))
				continue
			}
			fmt.Println("Deleted")

		case "list":
			keys := kv.ListKeys()
			if len(keys) == 0 {
				fmt.Println("No keys")
				continue
			}
			for _, key := range keys {
				fmt.Printf("  %s\n", key)
			}

		case "stats":
			fmt.Println(kv.Stats())

		case "compact":
			if err := kv.Compact(); err != nil {
				fmt.Println(render(err))
				continue
			}
			fmt.Println("Compaction finished")

		case "help":
			printHelp()

		case "quit", "exit":
			return

		default:
			fmt.Printf("Unknown command: %q\n", parts[0])
		}
	}
}

// render distinguishes the error kinds a user cares about: a miss, a
// corruption, and everything else.
func render(err error) string {
	var corrupt *store.CorruptRecordError
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		return "(not found)"
	case errors.As(err, &corrupt):
		return fmt.Sprintf("corrupt record: %v", err)
	default:
		return fmt.Sprintf("error: %v", err)
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  set <key> <value>")
	fmt.Println("  get <key>")
	fmt.Println("  delete <key>")
	fmt.Println("  list")
	fmt.Println("  stats")
	fmt.Println("  compact")
	fmt.Println("  help")
	fmt.Println("  quit / exit")
}
