package foliocmder_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	foliocmder "github.com/papercomputeco/folio/cmd/folio"
)

func TestFolioCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Folio Command Suite")
}

var _ = Describe("NewFolioCmd", func() {
	It("creates the root command", func() {
		cmd := foliocmder.NewFolioCmd()
		Expect(cmd.Use).To(Equal("folio"))
		Expect(cmd.Short).NotTo(BeEmpty())
	})

	It("has global persistent flags", func() {
		cmd := foliocmder.NewFolioCmd()

		debug := cmd.PersistentFlags().Lookup("debug")
		Expect(debug).NotTo(BeNil())
		Expect(debug.Shorthand).To(Equal("d"))

		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("registers every subcommand", func() {
		cmd := foliocmder.NewFolioCmd()

		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}

		Expect(names).To(ContainElements(
			"serve", "ingest", "ask", "search", "chat", "library",
			"status", "config", "init", "auth", "paths", "seed", "version",
		))
	})
})
