package iocli

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio(strings.NewReader(""), io.Discard)
	assert.NotNil(t, stdio)
}

func TestPrintlnAndPrintf(t *testing.T) {
	var out bytes.Buffer
	stdio := NewStdio(strings.NewReader(""), &out)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s", 1, "abc")
	_, err := stdio.Write([]byte("!"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc!", out.String())
}

// Тест ReadInput: несколько строк читаются последовательно из одного буфера
func TestReadInput(t *testing.T) {
	var out bytes.Buffer
	stdio := NewStdio(strings.NewReader("  user input \nsecond"), &out)

	result, err := stdio.ReadInput("Prompt: ")
	require.NoError(t, err)
	assert.Equal(t, "user input", result)

	// последняя строка без перевода строки
	result, err = stdio.ReadInput("Next: ")
	require.NoError(t, err)
	assert.Equal(t, "second", result)

	assert.Equal(t, "Prompt: Next: ", out.String())

	_, err = stdio.ReadInput("Empty: ")
	assert.ErrorIs(t, err, io.EOF)
}

// Из pipe пароль читается как обычная строка
func TestReadPassword_NotTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	go func() {
		_, _ = w.Write([]byte("Secret123\n"))
		_ = w.Close()
	}()

	stdio := NewStdio(r, io.Discard)
	password, err := stdio.ReadPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "Secret123", password)
}
