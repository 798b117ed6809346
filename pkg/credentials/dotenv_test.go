package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/credentials"
)

var _ = Describe("ReadEnvFile", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotenv-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("reads variables from a .env file", func() {
		data := `# local development keys
GEMINI_API_KEY=test-gemini-key
DATABASE_URL=postgres://localhost/folio
`
		err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		vars, path := credentials.ReadEnvFile(tmpDir)
		Expect(path).To(Equal(filepath.Join(tmpDir, ".env")))
		Expect(vars).To(HaveKeyWithValue("GEMINI_API_KEY", "test-gemini-key"))
		Expect(vars).To(HaveKeyWithValue("DATABASE_URL", "postgres://localhost/folio"))
	})

	It("handles quoted values", func() {
		data := `OPENAI_API_KEY="sk-quoted-key"
`
		err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		vars, _ := credentials.ReadEnvFile(tmpDir)
		Expect(vars).To(HaveKeyWithValue("OPENAI_API_KEY", "sk-quoted-key"))
	})

	It("returns nil when no .env exists in the directory", func() {
		vars, path := credentials.ReadEnvFile(tmpDir)
		Expect(vars).To(BeNil())
		Expect(path).To(BeEmpty())
	})
})

var _ = Describe("HarvestKeys", func() {
	It("extracts keys for supported providers", func() {
		vars := map[string]string{
			"GEMINI_API_KEY": "gemini-key",
			"OPENAI_API_KEY": "openai-key",
			"QDRANT_API_KEY": "qdrant-key",
			"DATABASE_URL":   "postgres://localhost/folio",
		}

		keys := credentials.HarvestKeys(vars)
		Expect(keys).To(HaveLen(3))
		Expect(keys).To(HaveKeyWithValue("gemini", "gemini-key"))
		Expect(keys).To(HaveKeyWithValue("openai", "openai-key"))
		Expect(keys).To(HaveKeyWithValue("qdrant", "qdrant-key"))
	})

	It("skips providers whose variable is missing or empty", func() {
		vars := map[string]string{
			"GEMINI_API_KEY": "gemini-key",
			"OPENAI_API_KEY": "",
		}

		keys := credentials.HarvestKeys(vars)
		Expect(keys).To(HaveLen(1))
		Expect(keys).To(HaveKey("gemini"))
		Expect(keys).NotTo(HaveKey("openai"))
	})

	It("returns an empty map when nothing matches", func() {
		vars := map[string]string{
			"DATABASE_URL": "postgres://localhost/folio",
			"LOG_LEVEL":    "debug",
		}

		keys := credentials.HarvestKeys(vars)
		Expect(keys).To(BeEmpty())
	})
})
