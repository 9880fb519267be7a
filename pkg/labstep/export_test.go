package labstep

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labstep/labstep-go/internal/fakelabstep"
	"github.com/labstep/labstep-go/pkg/export"
	"github.com/labstep/labstep-go/pkg/optional"
)

// newConverter serves the HTML converter under /convert/ and the PDF
// renderer under /pdf/.
func newConverter(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/convert/":
			assert.Equal(t, "html", body["type"])
			_, _ = w.Write([]byte("<p>Mix 5 µl</p>"))
		case "/pdf/":
			assert.Equal(t, "<p>Mix 5 µl</p>", body["html"])
			_, _ = w.Write([]byte("%PDF-1.4 fake"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newExportClient(t *testing.T, pdf bool) (*Client, *fakelabstep.Server) {
	t.Helper()
	srv := fakelabstep.New()
	t.Cleanup(srv.Close)
	conv := newConverter(t)

	key, _, _ := srv.AddUser("alice", "secret")
	cfg := testConfig(srv)
	cfg.ConverterURL = conv.URL + "/convert"
	cfg.PDFURL = conv.URL + "/pdf"
	cfg.ExportPDF = pdf

	c, err := Authenticate(context.Background(), cfg, key)
	require.NoError(t, err)
	return c, srv
}

func readFile(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, name)
	require.NoError(t, err, name)
	return string(b)
}

func buildExperiment(t *testing.T, c *Client) (*Experiment, *Comment) {
	t.Helper()
	ctx := context.Background()

	exp, err := c.NewExperiment(ctx, "Gibson assembly")
	require.NoError(t, err)
	require.NoError(t, exp.SetEntry(ctx, sampleDoc))

	comment, err := exp.Comments().AddWithFile(ctx, "Gel", "gel: 1.txt", strings.NewReader("bands"))
	require.NoError(t, err)

	_, err = exp.Metadata().Add(ctx, MetadataInput{Label: "Notes", Value: optional.Set("ok")})
	require.NoError(t, err)
	_, err = exp.Metadata().Add(ctx, MetadataInput{
		Label:    "Scan",
		Type:     MetadataFile,
		File:     strings.NewReader("scan bytes"),
		Filename: "scan.png",
	})
	require.NoError(t, err)
	return exp, comment
}

func TestExport_Experiment(t *testing.T) {
	tests := []struct {
		name    string
		pdf     bool
		wantPDF bool
	}{
		{name: "html only", pdf: false},
		{name: "with pdf", pdf: true, wantPDF: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newExportClient(t, tt.pdf)
			exp, comment := buildExperiment(t, c)

			fs := afero.NewMemMapFs()
			sink := &export.FSSink{Fs: fs, Root: "/out"}
			dir, err := c.Export(context.Background(), exp, sink, "exports", "")
			require.NoError(t, err)
			assert.Equal(t, "exports/"+exp.Key(), dir)

			base := path.Join("/out", dir)

			var entity map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(readFile(t, fs, base+"/entity.json")), &entity))
			assert.Equal(t, "Gibson assembly", entity["name"])

			cdir := base + "/comments/" + comment.Key()
			assert.Contains(t, readFile(t, fs, cdir+"/comment.json"), `"Gel"`)
			assert.Equal(t, "bands", readFile(t, fs, cdir+"/files/gel_ 1.txt"))

			md := readFile(t, fs, base+"/metadata/metadata.yaml")
			assert.Contains(t, md, "label: Notes")
			assert.Contains(t, md, "label: Scan")
			assert.Equal(t, "scan bytes", readFile(t, fs, base+"/metadata/files/scan.png"))

			assert.Equal(t, "<p>Mix 5 µl</p>", readFile(t, fs, base+"/entry.html"))

			exists, err := afero.Exists(fs, base+"/entry.pdf")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPDF, exists)
		})
	}
}

func TestExport_File(t *testing.T) {
	c, _ := newExportClient(t, false)
	ctx := context.Background()

	f, err := c.UploadFile(ctx, "results.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	dir, err := c.Export(ctx, f, &export.FSSink{Fs: fs, Root: "/"}, "files", "Results 🔬")
	require.NoError(t, err)
	assert.Equal(t, "files/Results", dir)
	assert.Equal(t, "a,b\n1,2\n", readFile(t, fs, "/files/Results/results.csv"))
}

func TestExport_CollectsPartialFailures(t *testing.T) {
	c, srv := newExportClient(t, false)
	exp, _ := buildExperiment(t, c)

	srv.FailNext(http.MethodPost, "/api/generic/file/download/", http.StatusInternalServerError, 1)

	fs := afero.NewMemMapFs()
	dir, err := c.Export(context.Background(), exp, &export.FSSink{Fs: fs, Root: "/out"}, "exports", "run")
	require.Error(t, err)
	assert.Equal(t, "exports/run", dir)

	// everything else is still written
	assert.NotEmpty(t, readFile(t, fs, "/out/exports/run/entity.json"))
	assert.NotEmpty(t, readFile(t, fs, "/out/exports/run/entry.html"))
	assert.NotEmpty(t, readFile(t, fs, "/out/exports/run/metadata/metadata.yaml"))
}

func TestExport_NoDocumentSkipsConversion(t *testing.T) {
	c, _ := newExportClient(t, true)
	ctx := context.Background()

	d, err := c.NewDevice(ctx, "Thermocycler")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	_, err = c.Export(ctx, d, &export.FSSink{Fs: fs, Root: "/out"}, "", "device")
	require.NoError(t, err)

	exists, _ := afero.Exists(fs, "/out/device/entry.html")
	assert.False(t, exists)
	exists, _ = afero.Exists(fs, "/out/device/entity.json")
	assert.True(t, exists)
}

func TestExport_SameNamedAttachmentsKept(t *testing.T) {
	c, _ := newExportClient(t, false)
	ctx := context.Background()

	exp, err := c.NewExperiment(ctx, "Imaging")
	require.NoError(t, err)

	before, err := exp.Metadata().Add(ctx, MetadataInput{
		Label: "Before", Type: MetadataFile, File: strings.NewReader("first scan"), Filename: "scan.png",
	})
	require.NoError(t, err)
	after, err := exp.Metadata().Add(ctx, MetadataInput{
		Label: "After", Type: MetadataFile, File: strings.NewReader("second scan"), Filename: "scan.png",
	})
	require.NoError(t, err)
	require.NotNil(t, before.File)
	require.NotNil(t, after.File)

	first, err := c.UploadFile(ctx, "plate.csv", strings.NewReader("a"))
	require.NoError(t, err)
	second, err := c.UploadFile(ctx, "plate.csv", strings.NewReader("b"))
	require.NoError(t, err)
	comment, err := exp.Comments().Add(ctx, "Replicates", first.ID, second.ID)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	dir, err := c.Export(ctx, exp, &export.FSSink{Fs: fs, Root: "/out"}, "", "")
	require.NoError(t, err)
	base := path.Join("/out", dir)

	assert.Equal(t, "first scan", readFile(t, fs, base+"/metadata/files/scan.png"))
	assert.Equal(t, "second scan", readFile(t, fs, base+"/metadata/files/"+idKey(after.File.ID)+"_scan.png"))

	cdir := base + "/comments/" + comment.Key() + "/files/"
	assert.Equal(t, "a", readFile(t, fs, cdir+"plate.csv"))
	assert.Equal(t, "b", readFile(t, fs, cdir+second.Key()+"_plate.csv"))
}
