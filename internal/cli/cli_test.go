package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paycore/internal/domain/payroll"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestComputeJSON(t *testing.T) {
	input := writeFile(t, "emp.json", `{"employeeId":"emp-1","period":"2024-01","baseSalary":500000}`)
	pdfPath := filepath.Join(t.TempDir(), "emp.pdf")

	out, err := run(t, "compute", input, "--pdf", pdfPath)
	require.NoError(t, err)

	var bulletin payroll.Bulletin
	require.NoError(t, json.Unmarshal([]byte(out), &bulletin))
	assert.Equal(t, "380000", bulletin.NetPay.String())

	pdf, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestComputeTOML(t *testing.T) {
	input := writeFile(t, "emp.toml", `
employee_id = "emp-2"
period = "2024-01"
base_salary = "500000"
days_worked = "20"
`)
	out, err := run(t, "compute", input)
	require.NoError(t, err)

	var bulletin payroll.Bulletin
	require.NoError(t, json.Unmarshal([]byte(out), &bulletin))
	assert.Equal(t, "305000", bulletin.NetPay.String())
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	input := writeFile(t, "emp.json", `{"employeeId":"emp-1","period":"2024-01","baseSalary":0}`)
	_, err := run(t, "compute", input)
	assert.ErrorIs(t, err, payroll.ErrValidation)
}

func TestComputeWithCustomParameters(t *testing.T) {
	params := writeFile(t, "params.toml", `
[[parameter]]
code = "ROUNDING_INCREMENT"
value = "100"
effective_from = 2000-01-01
`)
	input := writeFile(t, "emp.json", `{"employeeId":"emp-1","period":"2024-01","baseSalary":500000}`)

	out, err := run(t, "compute", input, "--parameters", params)
	require.NoError(t, err)

	var bulletin payroll.Bulletin
	require.NoError(t, json.Unmarshal([]byte(out), &bulletin))
	// every other parameter and the brackets fall back to the statutory defaults
	assert.Equal(t, "379900", bulletin.NetPay.String())
	assert.NotEmpty(t, bulletin.Warnings)
}

func TestBatch(t *testing.T) {
	input := writeFile(t, "batch.json", `[
		{"employeeId":"a","period":"2024-01","baseSalary":500000},
		{"employeeId":"b","period":"2024-01","baseSalary":0},
		{"employeeId":"c","period":"2024-01","baseSalary":500000,"daysWorked":20}
	]`)

	out, err := run(t, "batch", input)
	require.NoError(t, err)

	var result payroll.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Succeeded, 2)
	assert.Equal(t, "a", result.Succeeded[0].EmployeeID)
	assert.Equal(t, "c", result.Succeeded[1].EmployeeID)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "b", result.Failed[0].EmployeeID)

	_, err = run(t, "batch", input, "--strict")
	assert.Error(t, err)
}

func TestBatchTOMLEmployees(t *testing.T) {
	input := writeFile(t, "batch.toml", `
[[employees]]
employee_id = "a"
period = "2024-01"
base_salary = "500000"

[[employees]]
employee_id = "b"
period = "2024-01"
base_salary = "1500000"
marital_status = "married"
children_count = 3
`)
	out, err := run(t, "batch", input, "--strict")
	require.NoError(t, err)

	var result payroll.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Succeeded, 2)
	assert.Equal(t, "3.5", result.Succeeded[1].IncomeTax.Parts.String())
}

func TestTax(t *testing.T) {
	out, err := run(t, "tax", "--fiscal-base", "500000", "--period", "2024-01")
	require.NoError(t, err)

	var tax payroll.IncomeTax
	require.NoError(t, json.Unmarshal([]byte(out), &tax))
	assert.Equal(t, "100120", tax.MonthlyTax.String())

	_, err = run(t, "tax", "--fiscal-base", "500000", "--period", "2024-01", "--marital", "engaged")
	assert.Error(t, err)

	_, err = run(t, "tax", "--fiscal-base", "500000")
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	out, err := run(t, "catalog", "--period", "2024-01")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "CODE"))
	assert.True(t, strings.HasPrefix(lines[1], payroll.CodeBaseSalary))
}
