package zaplog_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Swind/go-thread-affinity/core"
	"github.com/Swind/go-thread-affinity/observability/zaplog"
)

var _ = Describe("Logger", func() {
	var (
		logs   *observer.ObservedLogs
		logger *zaplog.Logger
	)

	BeforeEach(func() {
		var zcore zapcore.Core
		zcore, logs = observer.New(zapcore.DebugLevel)
		logger = zaplog.New(zap.New(zcore))
	})

	It("should map every level and keep fields", func() {
		logger.Debug("d")
		logger.Info("i", core.F("context", "ui"), core.F("pending", 3))
		logger.Warn("w")
		logger.Error("e")

		entries := logs.AllUntimed()
		Expect(entries).To(HaveLen(4))
		Expect(entries[0].Level).To(Equal(zapcore.DebugLevel))
		Expect(entries[1].Level).To(Equal(zapcore.InfoLevel))
		Expect(entries[2].Level).To(Equal(zapcore.WarnLevel))
		Expect(entries[3].Level).To(Equal(zapcore.ErrorLevel))

		fields := entries[1].ContextMap()
		Expect(fields).To(HaveKeyWithValue("context", "ui"))
		Expect(fields).To(HaveKeyWithValue("pending", int64(3)))
	})

	It("should prefix names", func() {
		logger.Named("dispatch").Info("hello")
		Expect(logs.FilterMessage("hello").All()[0].LoggerName).To(Equal("dispatch"))
	})

	It("should tolerate a nil zap logger", func() {
		Expect(func() { zaplog.New(nil).Info("dropped") }).NotTo(Panic())
	})

	Context("wired into a SingleThreadContext", func() {
		It("should log the lifecycle of a clean drain", func() {
			c := core.NewSingleThreadContextWithConfig(time.Second, &core.ContextConfig{
				Name:   "ui",
				Logger: logger,
			})
			Expect(c.Post(func(any) {}, nil)).To(Succeed())
			c.ShutDown()
			Expect(c.Run()).To(Succeed())

			Expect(logs.FilterMessage("Shutdown requested").Len()).To(Equal(1))
			Expect(logs.FilterMessage("Dispatch loop started").Len()).To(Equal(1))
			Expect(logs.FilterMessage("Dispatch loop drained").Len()).To(Equal(1))
			Expect(logs.FilterLevelExact(zapcore.ErrorLevel).Len()).To(BeZero())
		})

		It("should log an error when the grace period elapses", func() {
			c := core.NewSingleThreadContextWithConfig(0, &core.ContextConfig{
				Name:   "ui",
				Logger: logger,
			})
			Expect(c.Post(func(any) {}, nil)).To(Succeed())
			c.ShutDown()
			time.Sleep(5 * time.Millisecond)

			err := c.Run()
			Expect(errors.Is(err, core.ErrShutdownTimeout)).To(BeTrue())

			discarded := logs.FilterMessage("Shutdown grace period elapsed, discarding queued work").All()
			Expect(discarded).To(HaveLen(1))
			Expect(discarded[0].ContextMap()).To(HaveKeyWithValue("discarded", int64(1)))
		})
	})
})

var _ = Describe("NewZap", func() {
	It("should accept known levels", func() {
		for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
			l, err := zaplog.NewZap(lvl)
			Expect(err).NotTo(HaveOccurred())
			Expect(l).NotTo(BeNil())
		}
	})

	It("should reject unknown levels", func() {
		_, err := zaplog.NewZap("loud")
		Expect(err).To(MatchError(ContainSubstring("invalid log level")))
	})
})

var _ = Describe("DiagnosticSink", func() {
	It("should record failures tagged with the context name", func() {
		zcore, logs := observer.New(zapcore.InfoLevel)
		sink := zaplog.NewDiagnosticSink(zap.New(zcore), "ui")

		sink.RecordFailure(core.FailureShutdownTimeout, core.ErrShutdownTimeout.Error())

		entries := logs.All()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Level).To(Equal(zapcore.ErrorLevel))
		Expect(entries[0].ContextMap()).To(And(
			HaveKeyWithValue("context", "ui"),
			HaveKeyWithValue("kind", "shutdown_timeout"),
			HaveKeyWithValue("message", core.ErrShutdownTimeout.Error()),
		))
	})

	It("should be told once per forced shutdown", func() {
		zcore, logs := observer.New(zapcore.InfoLevel)
		c := core.NewSingleThreadContextWithConfig(0, &core.ContextConfig{
			Name:           "ui",
			DiagnosticSink: zaplog.NewDiagnosticSink(zap.New(zcore), "ui"),
		})
		Expect(c.Post(func(any) {}, nil)).To(Succeed())
		c.ShutDown()
		time.Sleep(5 * time.Millisecond)

		Expect(c.Run()).To(MatchError(core.ErrShutdownTimeout))
		Expect(logs.FilterField(zap.String("kind", "shutdown_timeout")).Len()).To(Equal(1))
	})

	It("should ignore a nil receiver", func() {
		var sink *zaplog.DiagnosticSink
		Expect(func() { sink.RecordFailure(core.FailureShutdownTimeout, "x") }).NotTo(Panic())
	})
})
