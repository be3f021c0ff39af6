package support

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/goklt/cmd/klt/cmd"
	"github.com/cucumber/godog"
)

// iRunCommand executes a klt command line in process.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "klt" {
		return fmt.Errorf("unknown program %q", parts[0])
	}

	root := cmd.NewRootCommand()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(parts[1:])

	err := root.Execute()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		testCtx.LastExitCode = 1
	} else {
		testCtx.LastExitCode = 0
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the output is valid JSON.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theJSONShouldContain verifies JSON contains a specific, possibly dotted, field.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	var data map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	parts := strings.Split(field, ".")
	current := data
	for i, part := range parts {
		val, exists := current[part]
		if !exists {
			return fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return nil
		}
		next, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot navigate deeper into non-object field '%s'", part)
		}
		current = next
	}
	return nil
}

// theOutputShouldBeValidCSV verifies the output parses as CSV with a header.
func (testCtx *TestContext) theOutputShouldBeValidCSV() error {
	rows, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("expected a header and at least one row, got %d rows", len(rows))
	}
	return nil
}

// theErrorShouldMention verifies the error message contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	fullErrorText := testCtx.LastStderr
	if testCtx.LastError != nil {
		fullErrorText += " " + testCtx.LastError.Error()
	}
	if !strings.Contains(strings.ToLower(fullErrorText), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, fullErrorText)
	}
	return nil
}

// theOutputShouldContainUsageInformation verifies help output.
func (testCtx *TestContext) theOutputShouldContainUsageInformation() error {
	for _, section := range []string{"Usage:", "Flags:"} {
		if !strings.Contains(testCtx.LastOutput, section) {
			return fmt.Errorf("output missing %q section\nActual output: %s", section, testCtx.LastOutput)
		}
	}
	return nil
}

// theFileShouldExist verifies a file exists.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	path := testCtx.substituteCommandVariables(filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	return nil
}

// theFileShouldContain verifies a file contains specific content.
func (testCtx *TestContext) theFileShouldContain(filename, expectedContent string) error {
	if err := testCtx.theFileShouldExist(filename); err != nil {
		return err
	}

	path := testCtx.substituteCommandVariables(filename)
	content, err := os.ReadFile(path) //nolint:gosec // G304: Test file reading with controlled path
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if !strings.Contains(string(content), expectedContent) {
		return fmt.Errorf("file %s does not contain '%s'\nActual content: %s",
			filename, expectedContent, string(content))
	}
	return nil
}

// theLogsShouldBeJSON verifies every stderr line is a JSON log record.
func (testCtx *TestContext) theLogsShouldBeJSON() error {
	lines := strings.Split(strings.TrimSpace(testCtx.LastStderr), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("log line is not JSON: %s", line)
		}
	}
	return nil
}

// theLogsShouldContain verifies stderr contains specific text.
func (testCtx *TestContext) theLogsShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastStderr, expectedText) {
		return fmt.Errorf("logs do not contain '%s'\nActual logs: %s", expectedText, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) registerCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.SetEnvVar)
}

func (testCtx *TestContext) registerOutputSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should be valid CSV$`, testCtx.theOutputShouldBeValidCSV)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the output should contain usage information$`, testCtx.theOutputShouldContainUsageInformation)
	sc.Step(`^the logs should be JSON$`, testCtx.theLogsShouldBeJSON)
	sc.Step(`^the logs should contain "([^"]*)"$`, testCtx.theLogsShouldContain)
}

func (testCtx *TestContext) registerErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
}

func (testCtx *TestContext) registerFileSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}

// RegisterCommonSteps registers the generic command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	testCtx.registerCommandSteps(sc)
	testCtx.registerOutputSteps(sc)
	testCtx.registerErrorSteps(sc)
	testCtx.registerFileSteps(sc)
}
