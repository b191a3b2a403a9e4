package cmd

import (
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeStdin replaces os.Stdin with a pipe carrying data for the test's duration.
func pipeStdin(t *testing.T, data string) {
	t.Helper()
	origStdin := os.Stdin
	t.Cleanup(func() { os.Stdin = origStdin })

	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdin = r

	go func() {
		defer w.Close()
		w.Write([]byte(data))
	}()
}

func TestCheckStdinPipe(t *testing.T) {
	t.Run("WithPipedData", func(t *testing.T) {
		pipeStdin(t, "test piped input")

		data, hasPiped := checkStdinPipe()
		assert.True(t, hasPiped)
		assert.Equal(t, "test piped input", data)
	})

	t.Run("WithEmptyFile", func(t *testing.T) {
		origStdin := os.Stdin
		t.Cleanup(func() { os.Stdin = origStdin })

		tmpFile, err := os.CreateTemp(t.TempDir(), "terminal-sim")
		require.NoError(t, err)
		defer tmpFile.Close()

		f, err := os.Open(tmpFile.Name())
		require.NoError(t, err)
		defer f.Close()
		os.Stdin = f

		data, hasPiped := checkStdinPipe()
		assert.False(t, hasPiped)
		assert.Empty(t, data)
	})
}

func newInputCommand() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	c.Flags().StringP("prompt", "p", "", "")
	return c
}

func TestReadInput(t *testing.T) {
	t.Run("PromptFlagWins", func(t *testing.T) {
		c := newInputCommand()
		require.NoError(t, c.Flags().Set("prompt", "from flag"))

		input, err := readInput(c, []string{"from", "args"})
		require.NoError(t, err)
		assert.Equal(t, "from flag", input)
	})

	t.Run("ArgumentsAreJoined", func(t *testing.T) {
		input, err := readInput(newInputCommand(), []string{"Что", "такое", "Запрос?"})
		require.NoError(t, err)
		assert.Equal(t, "Что такое Запрос?", input)
	})

	t.Run("Stdin", func(t *testing.T) {
		pipeStdin(t, "Процедура Тест()\nКонецПроцедуры\n")

		input, err := readInput(newInputCommand(), nil)
		require.NoError(t, err)
		assert.Equal(t, "Процедура Тест()\nКонецПроцедуры", input)
	})

	t.Run("NothingGiven", func(t *testing.T) {
		pipeStdin(t, "")

		_, err := readInput(newInputCommand(), nil)
		assert.Error(t, err)
	})
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"stdio", "ask", "explain", "check", "auth", "logs"} {
		assert.True(t, names[name], "missing command %s", name)
	}
}
