package config_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func setenv(key, value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(os.Unsetenv, key)
}

var _ = Describe("Config", func() {
	It("should use the defaults", func() {
		c, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.env"))

		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(config.Default()))
		Expect(c.RingDepth).To(Equal(uint16(4096)))
		Expect(c.LogThrottle).To(Equal(uint32(100000)))
	})

	It("should read env files and let the environment win", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, ".env")
		Expect(os.WriteFile(path, []byte(
			"DAVIDRT_RING_DEPTH=256\n"+
				"DAVIDRT_LOG_LEVEL=debug\n"+
				"DAVIDRT_SYNC_POLL=1ms\n"+
				"DAVIDRT_SEPARATE_RECYCLE=true\n"), 0o600)).To(Succeed())

		setenv(config.KeyRingDepth, "512")

		c, err := config.Load(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.RingDepth).To(Equal(uint16(512)))
		Expect(c.LogLevel).To(Equal(zerolog.DebugLevel))
		Expect(c.SyncPoll).To(Equal(time.Millisecond))
		Expect(c.SeparateRecycle).To(BeTrue())
	})

	It("should reject values that do not parse", func() {
		_, err := config.FromMap(map[string]string{config.KeyRingDepth: "70000"})

		Expect(errors.Is(err, config.ErrBadValue)).To(BeTrue())
	})

	It("should reject values that do not fit together", func() {
		_, err := config.FromMap(map[string]string{
			config.KeyRingDepth:     "16",
			config.KeyMaxSqePerTask: "32",
		})

		Expect(errors.Is(err, config.ErrBadValue)).To(BeTrue())
	})
})
