package tail

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
)

// scanLines is the reference full-scan split LastLines must agree with.
func scanLines(content []byte) []string {
	lines := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func suffix(lines []string, n int) []string {
	if n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}

func numberedLines(count int, width int) string {
	var b strings.Builder
	for i := 1; i <= count; i++ {
		line := fmt.Sprintf("line %d", i)
		if pad := width - len(line); pad > 0 {
			line += strings.Repeat(".", pad)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func TestLastLinesMatchesFullScan(t *testing.T) {
	const chunk = 16
	cases := map[string]string{
		"empty":                 "",
		"one byte":              "x",
		"one newline":           "\n",
		"single line":           "hello\n",
		"single unterminated":   "hello",
		"exactly one chunk":     strings.Repeat("a", chunk-1) + "\n",
		"boundary at chunk":     "0123456789abcde\n0123456789abcde\n",
		"several chunks":        numberedLines(20, 9),
		"several unterminated":  strings.TrimSuffix(numberedLines(20, 9), "\n"),
		"blank lines kept":      "a\n\n   \nb\n\n",
		"leading blank":         "\nfirst\nsecond\n",
		"line longer than step": strings.Repeat("z", 5*chunk) + "\nshort\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewGomegaWithT(t)
			fs := afero.NewMemMapFs()
			g.Expect(afero.WriteFile(fs, "/logs/app.log", []byte(content), 0o644)).To(Succeed())
			reader := NewReader(fs, chunk)
			all := scanLines([]byte(content))

			for n := 0; n <= len(all)+2; n++ {
				got, err := reader.LastLines("/logs/app.log", n)
				g.Expect(err).ToNot(HaveOccurred())
				g.Expect(got).To(Equal(suffix(all, n)), "n=%d", n)
			}
		})
	}
}

func TestLastLinesIsIdempotent(t *testing.T) {
	g := NewGomegaWithT(t)
	fs := afero.NewMemMapFs()
	g.Expect(afero.WriteFile(fs, "/app.log", []byte(numberedLines(50, 30)), 0o644)).To(Succeed())
	reader := NewReader(fs, 64)

	first, err := reader.LastLines("/app.log", 7)
	g.Expect(err).ToNot(HaveOccurred())
	second, err := reader.LastLines("/app.log", 7)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(second).To(Equal(first))
	g.Expect(first).To(HaveLen(7))
	g.Expect(first[6]).To(HavePrefix("line 50"))
}

func TestLastLinesMissingFile(t *testing.T) {
	g := NewGomegaWithT(t)
	reader := NewReader(afero.NewMemMapFs(), 0)

	_, err := reader.LastLines("/nope.log", 10)
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
}

func TestLastLinesRejectsDirectory(t *testing.T) {
	g := NewGomegaWithT(t)
	fs := afero.NewMemMapFs()
	g.Expect(fs.MkdirAll("/logs", 0o755)).To(Succeed())

	_, err := NewReader(fs, 0).LastLines("/logs", 3)
	g.Expect(err).To(MatchError(ContainSubstring("is a directory")))
}

func TestLastLinesOnDisk(t *testing.T) {
	g := NewGomegaWithT(t)
	path := filepath.Join(t.TempDir(), "app.log")
	g.Expect(os.WriteFile(path, []byte(numberedLines(15, 0)), 0o644)).To(Succeed())

	got, err := NewReader(nil, 0).LastLines(path, 10)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got).To(HaveLen(10))
	g.Expect(got[0]).To(Equal("line 6"))
	g.Expect(got[9]).To(Equal("line 15"))
}

func TestLastLinesReplacesInvalidUTF8(t *testing.T) {
	g := NewGomegaWithT(t)
	fs := afero.NewMemMapFs()
	g.Expect(afero.WriteFile(fs, "/bin.log", []byte("ok\nbad\xffbyte\n"), 0o644)).To(Succeed())

	got, err := NewReader(fs, 4).LastLines("/bin.log", 1)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got).To(Equal([]string{"bad�byte"}))
}

func TestNewLinesReturnsAppendedCompleteLines(t *testing.T) {
	g := NewGomegaWithT(t)
	fs := afero.NewMemMapFs()
	initial := []byte("old 1\nold 2\n")
	g.Expect(afero.WriteFile(fs, "/app.log", initial, 0o644)).To(Succeed())
	reader := NewReader(fs, 0)
	offset := int64(len(initial))

	appendTo(g, fs, "/app.log", "new 1\n\n   \nnew 2\n")

	lines, next, err := reader.NewLines("/app.log", offset)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(lines).To(Equal([]string{"new 1", "new 2"}))
	g.Expect(next).To(Equal(offset + int64(len("new 1\n\n   \nnew 2\n"))))
}

func TestNewLinesHoldsBackPartialLine(t *testing.T) {
	g := NewGomegaWithT(t)
	fs := afero.NewMemMapFs()
	g.Expect(afero.WriteFile(fs, "/app.log", nil, 0o644)).To(Succeed())
	reader := NewReader(fs, 0)

	appendTo(g, fs, "/app.log", "done\nhalf")
	lines, next, err := reader.NewLines("/app.log", 0)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(lines).To(Equal([]string{"done"}))
	g.Expect(next).To(Equal(int64(len("done\n"))))

	appendTo(g, fs, "/app.log", " way\n")
	lines, next, err = reader.NewLines("/app.log", next)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(lines).To(Equal([]string{"half way"}))
	g.Expect(next).To(Equal(int64(len("done\nhalf way\n"))))
}

func TestNewLinesWithoutGrowth(t *testing.T) {
	g := NewGomegaWithT(t)
	fs := afero.NewMemMapFs()
	g.Expect(afero.WriteFile(fs, "/app.log", []byte("a\nb\n"), 0o644)).To(Succeed())
	reader := NewReader(fs, 0)

	lines, next, err := reader.NewLines("/app.log", 4)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(lines).To(BeEmpty())
	g.Expect(next).To(Equal(int64(4)))

	lines, next, err = reader.NewLines("/app.log", 10)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(lines).To(BeEmpty())
	g.Expect(next).To(Equal(int64(10)))
}

func TestNewLinesMissingFileKeepsOffset(t *testing.T) {
	g := NewGomegaWithT(t)
	reader := NewReader(afero.NewMemMapFs(), 0)

	lines, next, err := reader.NewLines("/gone.log", 42)
	g.Expect(err).To(HaveOccurred())
	g.Expect(lines).To(BeEmpty())
	g.Expect(next).To(Equal(int64(42)))
}

func appendTo(g *WithT, fs afero.Fs, path, content string) {
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	g.Expect(err).ToNot(HaveOccurred())
	_, err = f.WriteString(content)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f.Close()).To(Succeed())
}
