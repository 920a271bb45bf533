package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seclog/pkg/models"
)

const credentialDumpRule = `
title: Credential Dump Tool
id: 5d7a9c3e-1b2f-4e8a-9c61-0f3b2a7d4e11
level: high
tags:
  - attack.s0002
  - attack.credential_access
  - attack.t1003.001
logsource:
  product: windows
detection:
  selection:
    EventType: Credential Dump
  condition: selection
`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestSigmaEngineMatchesOnEventFields(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "dump.yml", credentialDumpRule)
	writeRule(t, dir, "broken.yaml", "detection: [unclosed")
	writeRule(t, dir, "README.md", "ignored")

	engine, stats, err := NewSigmaEngine(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.SkippedInvalid)
	assert.Equal(t, 1, engine.Loaded())

	hit := engine.Apply(&models.Event{EventType: "Credential Dump", Source: "EDR"})
	require.Len(t, hit, 1)
	assert.Equal(t, "Credential Dump Tool", hit[0].Title)
	assert.Equal(t, "high", hit[0].Level)
	assert.Equal(t, "credential-access", hit[0].Tactic)
	assert.Equal(t, "T1003/001", hit[0].Technique)

	miss := engine.Apply(&models.Event{EventType: "Successful Logon"})
	assert.Nil(t, miss)
}

const keywordScanRule = `
title: Mimikatz Keyword
level: high
detection:
  keywords:
    - sekurlsa
  condition: keywords
`

func TestSigmaEngineSkipsMultiEventAndHiddenRules(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "dump.yml", credentialDumpRule)
	writeRule(t, dir, "keywords.yml", keywordScanRule)
	hidden := filepath.Join(dir, ".git")
	require.NoError(t, os.Mkdir(hidden, 0755))
	writeRule(t, hidden, "stale.yml", credentialDumpRule)

	engine, stats, err := NewSigmaEngine(dir)
	require.NoError(t, err)
	assert.Equal(t, SigmaLoadStats{TotalFiles: 2, Loaded: 1, SkippedComplex: 1}, stats)
	assert.Equal(t, 1, engine.Loaded())

	hit := engine.Apply(&models.Event{EventType: "Credential Dump", Description: "sekurlsa::logonpasswords"})
	require.Len(t, hit, 1)
	assert.Equal(t, "Credential Dump Tool", hit[0].Title)
}

func TestAttackTags(t *testing.T) {
	tactic, technique := attackTags([]string{"attack.g0007", "attack.Lateral_Movement", "attack.t1021", "attack.execution", "cve.2021.1234"})
	assert.Equal(t, "lateral-movement", tactic)
	assert.Equal(t, "T1021", technique)

	tactic, technique = attackTags(nil)
	assert.Empty(t, tactic)
	assert.Empty(t, technique)
}

func TestSigmaEngineRejectsNonYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.txt")
	require.NoError(t, os.WriteFile(path, []byte(credentialDumpRule), 0644))

	_, _, err := NewSigmaEngine(path)
	assert.Error(t, err)
}

func TestNoopEngine(t *testing.T) {
	var e Engine = &NoopEngine{}
	assert.Nil(t, e.Apply(&models.Event{EventType: "x"}))
}
