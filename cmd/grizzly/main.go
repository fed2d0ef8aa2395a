// Command grizzly is a small demo binary: it loads a config file, wires
// up logging and the audit stream, opens an engine.Database, and either
// runs one -sql statement or drops into a line-at-a-time REPL.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/zhukovaskychina/grizzly/audit"
	"github.com/zhukovaskychina/grizzly/config"
	"github.com/zhukovaskychina/grizzly/engine"
	"github.com/zhukovaskychina/grizzly/logger"
	"github.com/zhukovaskychina/grizzly/table"
)

func main() {
	configPath := flag.String("config", "", "path to an INI config file (defaults embedded if omitted)")
	sql := flag.String("sql", "", "run this statement (or `;`-separated statements) and exit instead of starting a REPL")
	sqlLineage := flag.String("lineage", "", "after -sql runs, print this model's lineage snapshot as YAML and exit")
	modelMeta := flag.String("model-meta", "", "TOML file of [models.<name>] metadata blocks to apply after -sql runs")
	flag.Parse()

	if err := run(*configPath, *sql, *sqlLineage, *modelMeta); err != nil {
		fmt.Fprintln(os.Stderr, "grizzly:", err)
		os.Exit(1)
	}
}

func run(configPath, sql, lineage, modelMeta string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	loggers, err := logger.New(logger.Config{
		ErrorLogPath: cfg.LogError,
		InfoLogPath:  cfg.LogInfos,
		LogLevel:     cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("building loggers: %w", err)
	}

	aud := audit.New(4096, loggers.Main)
	db := engine.New(cfg, aud)
	db.StartScheduler()
	defer db.StopScheduler()

	loggers.Main.Info("grizzly engine ready")

	if sql != "" {
		if err := runAndPrint(db, sql); err != nil {
			return err
		}
		if modelMeta != "" {
			n, err := db.ApplyModelMeta(modelMeta)
			if err != nil {
				return err
			}
			loggers.Main.Infof("applied metadata to %d model(s)", n)
		}
		if lineage != "" {
			out, err := db.LineageYAML(lineage)
			if err != nil {
				return err
			}
			os.Stdout.Write(out)
		}
		return nil
	}
	return repl(db)
}

func repl(db *engine.Database) error {
	fmt.Println("grizzly> type SQL statements terminated by ';', or 'exit' to quit")
	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	fmt.Print("grizzly> ")
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "exit" && buf.Len() == 0 {
			return nil
		}
		buf.WriteString(line)
		buf.WriteString("\n")
		if strings.Contains(line, ";") {
			if err := runAndPrint(db, buf.String()); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			buf.Reset()
		}
		fmt.Print("grizzly> ")
	}
	return scanner.Err()
}

func runAndPrint(db *engine.Database, sql string) error {
	result, err := db.Run(sql)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	printTable(result)
	return nil
}

func printTable(t *table.Table) {
	cols := t.Schema.Columns
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	fmt.Println(strings.Join(names, "\t"))

	rows := t.RowCount()
	cells := make([][]string, len(cols))
	for i, c := range cols {
		col, err := t.Column(c.Name)
		if err != nil {
			continue
		}
		cells[i] = make([]string, rows)
		for r, v := range col.Data {
			cells[i][r] = v.String()
		}
	}
	for r := 0; r < rows; r++ {
		line := make([]string, len(cols))
		for i := range cols {
			line[i] = cells[i][r]
		}
		fmt.Println(strings.Join(line, "\t"))
	}
	fmt.Printf("(%d row(s))\n", rows)
}
