package cmd

import (
	"testing"

	"github.com/forgearmory/armory/pkg/testhelpers"
)

func TestRegisterCommandStructure(t *testing.T) {
	t.Parallel()

	testhelpers.AssertEqual(t, "register", registerCmd.Use)
	testhelpers.AssertEqual(t, "Register one or more MCP backends with the gateway", registerCmd.Short)
	testhelpers.AssertNotNil(t, registerCmd.RunE)

	annotationTests := []testhelpers.CommandAnnotationTest{
		{Key: "group", Expected: string(subCommandGroupBasic)},
		{Key: "order", Expected: "2"},
	}
	testhelpers.TestCommandAnnotations(t, registerCmd.Annotations, annotationTests)

	for _, flag := range []string{"name", "url", "prefix", "timeout", "disabled", "no-mount", "conf"} {
		f := registerCmd.Flags().Lookup(flag)
		testhelpers.AssertNotNil(t, f)
		testhelpers.AssertTrue(t, f != nil && len(f.Usage) > 0, "flag "+flag+" should have a usage description")
	}
}

func TestDeregisterCommandStructure(t *testing.T) {
	t.Parallel()

	testhelpers.AssertEqual(t, "deregister <name>", deregisterCmd.Use)
	testhelpers.AssertNotNil(t, deregisterCmd.RunE)
	testhelpers.AssertNotNil(t, deregisterCmd.Args)
}

func TestStartCommandStructure(t *testing.T) {
	t.Parallel()

	testhelpers.AssertEqual(t, "start", startServerCmd.Use)
	testhelpers.AssertNotNil(t, startServerCmd.RunE)

	annotationTests := []testhelpers.CommandAnnotationTest{
		{Key: "group", Expected: string(subCommandGroupBasic)},
		{Key: "order", Expected: "1"},
	}
	testhelpers.TestCommandAnnotations(t, startServerCmd.Annotations, annotationTests)

	portFlag := startServerCmd.Flags().Lookup("port")
	testhelpers.AssertNotNil(t, portFlag)
	configFlag := startServerCmd.Flags().Lookup("config")
	testhelpers.AssertNotNil(t, configFlag)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	t.Parallel()

	expected := map[string]bool{
		"start":      false,
		"register":   false,
		"deregister": false,
		"list":       false,
		"enable":     false,
		"disable":    false,
		"refresh":    false,
		"update":     false,
		"usage":      false,
	}
	for _, sub := range rootCmd.Commands() {
		if _, ok := expected[sub.Name()]; ok {
			expected[sub.Name()] = true
		}
	}
	for name, found := range expected {
		testhelpers.AssertTrue(t, found, "expected subcommand "+name+" to be registered")
	}
}
