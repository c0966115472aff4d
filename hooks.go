package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

// runHooks reads each SQL file of a hook phase, expands {{database}} and
// applies every statement. Hook failures are recorded as skipped objects
// and never stop the migration.
func (m *migrator) runHooks(ctx context.Context, phase string, files []string) {
	if len(files) == 0 {
		return
	}
	log.Printf("  running %s hooks (%d files)...", phase, len(files))

	for _, f := range files {
		path := m.cfg.resolvePath(f)
		data, err := os.ReadFile(path)
		if err != nil {
			obj := SchemaObject{Kind: KindHook, Name: phase + ":" + f}
			reason := fmt.Sprintf("read %s: %v", path, err)
			log.Printf("    ERROR: hook %s: %s", obj.Name, reason)
			m.report.add(ObjectResult{Stage: m.stage, Object: obj, Status: statusSkipped, Reason: reason})
			continue
		}

		sql := strings.ReplaceAll(string(data), "{{database}}", m.cfg.Target.Database)
		stmts := splitStatements(sql)

		log.Printf("    %s: %d statements", f, len(stmts))
		for i, stmt := range stmts {
			obj := SchemaObject{Kind: KindHook, Name: fmt.Sprintf("%s:%s#%d", phase, f, i+1), SQL: stmt}
			m.apply(ctx, obj, ConversionOutcome{Statement: stmt})
		}
	}
}
