package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// encodeTestImage builds a solid image of the given size in the requested format
func encodeTestImage(width, height int, format string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	switch format {
	case "jpeg":
		Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
	default:
		Expect(png.Encode(&buf, img)).To(Succeed())
	}
	return buf.Bytes()
}

var _ = Describe("prepareImageData", func() {
	var (
		input       []byte
		contentType string
		output      []byte
		err         error
	)

	JustBeforeEach(func() {
		output, err = prepareImageData(input, contentType)
	})

	When("the input is a small PNG", func() {
		BeforeEach(func() {
			input = encodeTestImage(10, 20, "png")
			contentType = "image/png"
		})

		It("passes the data through untouched", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(output).To(Equal(input))
		})
	})

	When("the input is a JPEG", func() {
		BeforeEach(func() {
			input = encodeTestImage(10, 20, "jpeg")
			contentType = " IMAGE/JPEG "
		})

		It("converts it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			_, format, decodeErr := image.Decode(bytes.NewReader(output))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("the input is larger than the maximum dimension", func() {
		BeforeEach(func() {
			input = encodeTestImage(4096, 1024, "png")
			contentType = "image/png"
		})

		It("downscales it keeping the aspect ratio", func() {
			Expect(err).NotTo(HaveOccurred())
			cfg, _, decodeErr := image.DecodeConfig(bytes.NewReader(output))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(2048))
			Expect(cfg.Height).To(Equal(512))
		})
	})

	When("the input is a very thin strip", func() {
		BeforeEach(func() {
			input = encodeTestImage(5000, 1, "png")
			contentType = "image/png"
		})

		It("keeps at least one pixel on the short side", func() {
			Expect(err).NotTo(HaveOccurred())
			cfg, _, decodeErr := image.DecodeConfig(bytes.NewReader(output))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(2048))
			Expect(cfg.Height).To(Equal(1))
		})
	})

	When("the input is not an image", func() {
		BeforeEach(func() {
			input = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("returns an unsupported format error", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
		})
	})
})

var _ = Describe("downscale", func() {
	DescribeTable("target sizes",
		func(width, height, expectedWidth, expectedHeight int) {
			img := image.NewRGBA(image.Rect(0, 0, width, height))
			out, resized := downscale(img, 2048)
			Expect(resized).To(BeTrue())
			Expect(out.Bounds().Dx()).To(Equal(expectedWidth))
			Expect(out.Bounds().Dy()).To(Equal(expectedHeight))
		},
		Entry("wide", 4096, 2048, 2048, 1024),
		Entry("tall", 1000, 4096, 500, 2048),
		Entry("one pixel high", 5000, 1, 2048, 1),
		Entry("one pixel wide", 1, 5000, 1, 2048),
	)

	It("leaves small images alone", func() {
		img := image.NewRGBA(image.Rect(0, 0, 100, 100))
		out, resized := downscale(img, 2048)
		Expect(resized).To(BeFalse())
		Expect(out).To(BeIdenticalTo(img))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("detects the heic brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic0000"))).To(BeTrue())
	})

	It("rejects short data", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})

	It("rejects other brands", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypisom0000"))).To(BeFalse())
	})
})
