package extractor_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/summit/services/sbomindexd/internal/extractor"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name+".json"))
	require.NoError(t, err)
	return raw
}

func TestExtractSPDX(t *testing.T) {
	doc, err := extractor.Extract("ubi9-sbom", readFixture(t, "ubi9-sbom"))
	require.NoError(t, err)

	require.Equal(t, "ubi9-sbom", doc.SBOMID)
	require.Equal(t, "ubi9-container", doc.SBOMName)

	created := time.Date(2023, 1, 15, 10, 0, 0, 0, time.UTC).UnixMilli()
	require.Equal(t, created, doc.SBOMCreated)
	require.Equal(t, -created, doc.SBOMInverse)
	require.Equal(t, []string{"Red Hat Product Security", "example-sbom-generator"}, doc.SBOMCreators)

	// The described package lands in the primary group.
	require.Equal(t, []string{"ubi9-container"}, doc.PkgName)
	require.Equal(t, []string{"9.1.0-1782"}, doc.PkgVersion)
	require.Equal(t, []string{"Red Hat"}, doc.PkgSupplier)
	require.Equal(t, []string{"MIT"}, doc.PkgLicense)
	require.Equal(t, []string{"cpe:/o:redhat:enterprise_linux:9::baseos"}, doc.PkgCPE)
	require.Len(t, doc.PkgSHA256, 1)

	require.Equal(t, []string{"oci"}, doc.PkgPURLType)
	require.Equal(t, []string{"ubi9"}, doc.PkgPURLName)
	require.Equal(t, []string{"9.1.0-1782"}, doc.PkgPURLVersion)
	require.Contains(t, doc.PkgPURLQualifier, "tag=9.1.0-1782")
	require.Contains(t, doc.PkgPURLQualifierValues, "9.1.0-1782")

	// Everything else lands in the dependency group.
	require.ElementsMatch(t, []string{"bash", "glibc"}, doc.DepName)
	require.ElementsMatch(t, []string{"bash", "glibc"}, doc.DepPURLName)
	require.ElementsMatch(t, []string{"rpm", "rpm"}, doc.DepPURLType)
	require.Contains(t, doc.DepPURLQualifier, "arch=x86_64")
	require.Empty(t, doc.DepCPE)
}

func TestExtractCycloneDX(t *testing.T) {
	doc, err := extractor.Extract("my-sbom", readFixture(t, "my-sbom"))
	require.NoError(t, err)

	require.Equal(t, "my-sbom", doc.SBOMID)
	require.Equal(t, "seedwing-java-example", doc.SBOMName)

	created := time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	require.Equal(t, created, doc.SBOMCreated)
	require.Equal(t, -created, doc.SBOMInverse)

	require.Equal(t, []string{"seedwing-java-example"}, doc.PkgName)
	require.Equal(t, []string{"application"}, doc.PkgClassifier)
	require.Equal(t, []string{"Apache-2.0"}, doc.PkgLicense)
	require.Equal(t, []string{"maven"}, doc.PkgPURLType)
	require.Equal(t, []string{"io.seedwing"}, doc.PkgPURLNamespace)
	require.Equal(t, []string{"seedwing-java-example"}, doc.PkgPURLName)
	require.Contains(t, doc.PkgPURLQualifier, "type=jar")
	require.Len(t, doc.PkgSHA256, 1)

	require.ElementsMatch(t, []string{"quarkus-core", "jackson-databind"}, doc.DepName)
	require.ElementsMatch(t, []string{"library", "library"}, doc.DepClassifier)
	require.ElementsMatch(t, []string{"io.quarkus", "com.fasterxml.jackson.core"}, doc.DepPURLNamespace)
	require.Contains(t, doc.DepPURLQualifier, "type=jar")
	require.Len(t, doc.DepSHA256, 1)
}

func TestExtractDescribedViaRelationship(t *testing.T) {
	doc, err := extractor.Extract("kmm-1", readFixture(t, "kmm-1"))
	require.NoError(t, err)

	require.Equal(t, []string{"kernel-module-management"}, doc.PkgName)
	require.Equal(t, []string{"cpe:/a:redhat:kernel_module_management:1.0::el9"}, doc.PkgCPE)
	require.Equal(t, []string{"openssl"}, doc.DepName)
	require.Equal(t, []string{"Red Hat, Inc."}, doc.PkgSupplier)
}

func TestExtractRawPURLSurvivesParseFailure(t *testing.T) {
	payload := []byte(`{
		"bomFormat": "CycloneDX",
		"specVersion": "1.3",
		"version": 1,
		"metadata": {
			"timestamp": "2022-06-01T12:00:00Z",
			"component": {
				"type": "application",
				"name": "broken-purl",
				"purl": "not a package url"
			}
		}
	}`)
	doc, err := extractor.Extract("broken", payload)
	require.NoError(t, err)
	require.Equal(t, []string{"not a package url"}, doc.PkgPURL)
	require.Empty(t, doc.PkgPURLType)
	require.Empty(t, doc.PkgPURLName)
}

func TestExtractRejectsUnknownPayload(t *testing.T) {
	_, err := extractor.Extract("junk", []byte(`{"hello":"world"}`))
	require.Error(t, err)

	var perr *extractor.ParseError
	require.ErrorAs(t, err, &perr)
	require.Error(t, perr.SPDXErr)
	require.Error(t, perr.CycloneDXErr)
	require.Contains(t, err.Error(), "spdx")
	require.Contains(t, err.Error(), "cyclonedx")
}
