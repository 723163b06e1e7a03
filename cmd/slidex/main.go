package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gcs "cloud.google.com/go/storage"
	vision "cloud.google.com/go/vision/v2/apiv1"
	"github.com/google/generative-ai-go/genai"
	"github.com/ridge/must/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/slidex-project/slidex/encoder"
	"github.com/slidex-project/slidex/pipeline"
	"github.com/slidex-project/slidex/pipeline/artifact"
	"github.com/slidex-project/slidex/pipeline/fontkit"
	"github.com/slidex-project/slidex/pipeline/inpaint"
	"github.com/slidex-project/slidex/pipeline/recognize"
	"github.com/slidex-project/slidex/pkg/env"
	"github.com/slidex-project/slidex/schedule"
)

func main() {
	output := flag.String("o", "deck.pptx", "output PPTX path")
	withPDF := flag.Bool("pdf", false, "also write a flattened PDF next to the PPTX")
	withXLSX := flag.Bool("xlsx", false, "also write recovered tables as a spreadsheet")
	partial := flag.Bool("partial", true, "absorb recoverable faults as warnings instead of failing")
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatalf("usage: slidex [-o deck.pptx] [-pdf] [-xlsx] slide1.png [slide2.png ...]")
	}

	env.Load()
	ctx := context.Background()

	recognizer, closeRecognizer := newRecognizer(ctx)
	defer closeRecognizer()

	service := pipeline.New(
		recognizer,
		nil, /* default projection line detector */
		newInpainter(ctx),
		newFonts(),
		newArtifacts(ctx),
		schedule.NewPool(env.IntVariable("WORKER_POOL_SIZE", 4)),
		schedule.NewBudget(env.IntVariable("EXTERNAL_CALL_BUDGET", 8)),
		pipeline.Config{
			MaxSegmentationDepth:    env.IntVariable("MAX_SEGMENTATION_DEPTH", 4),
			MinOCRConfidence:        env.FloatVariable("MIN_OCR_CONFIDENCE", 0.62),
			TableStructureTolerance: env.FloatVariable("TABLE_STRUCTURE_TOLERANCE", 0.18),
			RetryInterval:           time.Second / 2,
		},
	)

	slides := make([][]byte, 0, flag.NArg())
	for _, path := range flag.Args() {
		slides = append(slides, must.OK1(os.ReadFile(path)))
	}

	result, err := service.Export(ctx, slides, pipeline.Options{ReturnPartialOnError: *partial})
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	for _, warning := range result.Warnings {
		log.Printf("Warning: %s", warning)
	}

	must.OK(os.WriteFile(*output, result.PPTX, 0o644))
	log.Printf("Wrote %s (%d slides, %d warnings)", *output, len(result.Documents), len(result.Warnings))

	base := strings.TrimSuffix(*output, filepath.Ext(*output))
	if *withPDF {
		pdf := must.OK1(encoder.EncodePDF(result.Documents))
		must.OK(os.WriteFile(base+".pdf", pdf, 0o644))
		log.Printf("Wrote %s.pdf", base)
	}
	if *withXLSX {
		xlsx := must.OK1(encoder.EncodeXLSX(result.Documents))
		must.OK(os.WriteFile(base+".xlsx", xlsx, 0o644))
		log.Printf("Wrote %s.xlsx", base)
	}
}

// newRecognizer picks the OCR provider. Document AI recovers style
// information and is preferred in production; Vision gives positions and
// confidences only; Tesseract needs no cloud credentials at all.
func newRecognizer(ctx context.Context) (recognize.TextRecognizer, func()) {
	switch provider := env.StringVariable("OCR_PROVIDER", "tesseract"); provider {
	case "documentai":
		client := must.OK1(documentai.NewDocumentProcessorClient(ctx,
			option.WithEndpoint(env.RequiredStringVariable("DOCUMENTAI_ENDPOINT"))))
		spec := recognize.ProcessorSpec{
			ProjectID:   env.RequiredStringVariable("GCP_PROJECT_ID"),
			Location:    env.RequiredStringVariable("DOCUMENTAI_LOCATION"),
			ProcessorID: env.RequiredStringVariable("DOCUMENTAI_PROCESSOR_ID"),
		}
		return recognize.NewDocumentAI(client, spec), func() { _ = client.Close() }
	case "vision":
		client := must.OK1(vision.NewImageAnnotatorClient(ctx))
		return recognize.NewGoogleVision(client), func() { _ = client.Close() }
	case "tesseract":
		return recognize.NewTesseract(env.StringVariable("TESSERACT_LANGUAGES", "eng")), func() {}
	default:
		log.Fatalf("unknown OCR_PROVIDER %q", provider)
		return nil, nil
	}
}

// newInpainter picks the background reconstruction backend. With no provider
// configured the pipeline falls back to flat fills.
func newInpainter(ctx context.Context) inpaint.Client {
	switch provider := env.StringVariable("INPAINT_PROVIDER", ""); provider {
	case "gemini":
		key := apiKey(ctx, "GEMINI_API_KEY", "GEMINI_API_KEY_SECRET_NAME")
		client := must.OK1(genai.NewClient(ctx, option.WithAPIKey(key)))
		return inpaint.NewGemini(client, env.StringVariable("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-exp"))
	case "openai":
		key := apiKey(ctx, "OPENAI_API_KEY", "OPENAI_KEY_SECRET_NAME")
		return inpaint.NewOpenAI(openai.NewClient(key))
	case "":
		return nil
	default:
		log.Fatalf("unknown INPAINT_PROVIDER %q", provider)
		return nil
	}
}

func newFonts() *fontkit.Provider {
	fontDir := env.StringVariable("FONT_DIR", "")
	if fontDir == "" {
		return fontkit.Builtin()
	}
	return must.OK1(fontkit.Load(fontDir, env.StringVariable("FONT_FAMILY", "Inter")))
}

func newArtifacts(ctx context.Context) artifact.Store {
	bucket := env.StringVariable("GCP_ARTIFACT_BUCKET", "")
	if bucket == "" {
		return artifact.Discard{}
	}
	return artifact.NewGCS(must.OK1(gcs.NewClient(ctx)), bucket)
}

// apiKey reads the key from the environment when set (local development) and
// from GCP Secret Manager otherwise.
func apiKey(ctx context.Context, envName, secretEnvName string) string {
	if key := os.Getenv(envName); key != "" {
		return key
	}
	client := must.OK1(secretmanager.NewClient(ctx))
	defer client.Close()
	secret := must.OK1(client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
			env.RequiredStringVariable("GCP_PROJECT_ID"),
			env.RequiredStringVariable(secretEnvName)),
	}))
	return string(secret.GetPayload().GetData())
}
