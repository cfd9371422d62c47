package human_test

import (
	"context"
	"io"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lectorhq/lector/pkg/human"
)

var _ = Describe("Console", func() {
	var out *strings.Builder

	BeforeEach(func() {
		out = &strings.Builder{}
	})

	Describe("AskText", func() {
		It("returns the entered line", func() {
			console := human.NewConsole(strings.NewReader("yes please\n"), out)

			answer, ok, err := console.AskText(context.Background(), "Approve?", time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(answer).To(Equal("yes please"))
			Expect(out.String()).To(ContainSubstring("Approve?"))
		})

		It("reports ok=false on timeout without an error", func() {
			blocked, _ := io.Pipe()
			console := human.NewConsole(blocked, out)

			start := time.Now()
			answer, ok, err := console.AskText(context.Background(), "Approve?", 30*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(answer).To(BeEmpty())
			Expect(time.Since(start)).To(BeNumerically(">=", 30*time.Millisecond))
		})

		It("reports ok=false for blank input", func() {
			console := human.NewConsole(strings.NewReader("   \n"), out)

			_, ok, err := console.AskText(context.Background(), "Approve?", time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("returns the context error when cancelled", func() {
			blocked, _ := io.Pipe()
			console := human.NewConsole(blocked, out)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, ok, err := console.AskText(ctx, "Approve?", time.Second)
			Expect(ok).To(BeFalse())
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("ReadLine", func() {
		It("returns lines in order with no timeout", func() {
			console := human.NewConsole(strings.NewReader("first\nsecond\n"), out)

			line, open, err := console.ReadLine(context.Background(), "you> ")
			Expect(err).NotTo(HaveOccurred())
			Expect(open).To(BeTrue())
			Expect(line).To(Equal("first"))

			line, open, err = console.ReadLine(context.Background(), "you> ")
			Expect(err).NotTo(HaveOccurred())
			Expect(open).To(BeTrue())
			Expect(line).To(Equal("second"))
			Expect(out.String()).To(ContainSubstring("you>"))
		})

		It("reports open=false once input is exhausted", func() {
			console := human.NewConsole(strings.NewReader("only\n"), out)

			_, open, err := console.ReadLine(context.Background(), "you> ")
			Expect(err).NotTo(HaveOccurred())
			Expect(open).To(BeTrue())

			_, open, err = console.ReadLine(context.Background(), "you> ")
			Expect(err).NotTo(HaveOccurred())
			Expect(open).To(BeFalse())
		})

		It("receives a line typed mid-session on a shared stream", func() {
			// One console owns the reader for the whole session. A line
			// arriving while no prompt is pending must still reach the next
			// ReadLine rather than being lost to an idle read.
			pr, pw := io.Pipe()
			console := human.NewConsole(pr, out)

			go func() {
				_, _ = pw.Write([]byte("what changed in chapter two?\n"))
			}()

			done := make(chan struct{})
			var line string
			var open bool
			go func() {
				defer close(done)
				line, open, _ = console.ReadLine(context.Background(), "you> ")
			}()

			Eventually(done, time.Second).Should(BeClosed())
			Expect(open).To(BeTrue())
			Expect(line).To(Equal("what changed in chapter two?"))
		})

		It("delivers the line after an earlier prompt timed out", func() {
			pr, pw := io.Pipe()
			console := human.NewConsole(pr, out)

			_, ok, err := console.AskText(context.Background(), "Approve?", 20*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			go func() {
				_, _ = pw.Write([]byte("next question\n"))
			}()

			line, open, err := console.ReadLine(context.Background(), "you> ")
			Expect(err).NotTo(HaveOccurred())
			Expect(open).To(BeTrue())
			Expect(line).To(Equal("next question"))
		})

		It("returns the context error when cancelled", func() {
			blocked, _ := io.Pipe()
			console := human.NewConsole(blocked, out)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, open, err := console.ReadLine(ctx, "you> ")
			Expect(open).To(BeFalse())
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("AskFiles", func() {
		It("splits the answer into paths", func() {
			console := human.NewConsole(strings.NewReader("a.md docs/b.txt\n"), out)

			paths, ok, err := console.AskFiles(context.Background(), "Files?", time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(paths).To(Equal([]string{"a.md", "docs/b.txt"}))
		})
	})

	Describe("Notify", func() {
		It("writes the message", func() {
			console := human.NewConsole(strings.NewReader(""), out)
			Expect(console.Notify(context.Background(), "done")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("done"))
		})
	})

	Describe("Stream", func() {
		It("writes through to the output", func() {
			console := human.NewConsole(strings.NewReader(""), out)
			w := console.Stream(context.Background())
			_, err := w.Write([]byte("chunk"))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(ContainSubstring("chunk"))
		})
	})
})
