// Package rawpeek extracts the embedded preview JPEG from TIFF-derived
// camera RAW files (ARW, CR2, DNG, NEF, ...) without reading the full RAW
// payload.
//
// RAW containers store one or more reduced previews alongside the sensor
// data. Their offsets are recorded in the TIFF IFD chain at the head of the
// file, so only a few kilobytes of each file ever need to be touched: the
// IFD chain and the preview bytes themselves. Files are memory-mapped and
// the kernel is advised about the sparse access pattern, keeping page-cache
// pressure low even across directories of multi-hundred-megabyte RAWs.
//
// # Quick Start
//
// Extract every RAW file under a tree into a mirrored output tree:
//
//	ex := rawpeek.NewExtractor(rawpeek.WithConcurrency(64))
//	outcomes, err := ex.Run(ctx, "/photos/raw", "/photos/previews")
//	if err != nil {
//	    for _, o := range outcomes {
//	        if o.Err != nil {
//	            log.Printf("%s: %v", o.Rel, o.Err)
//	        }
//	    }
//	}
//
// For a single buffer, [Locate] walks the IFD chain directly:
//
//	p, err := rawpeek.Locate(buf)
//	jpeg := buf[p.Offset : p.Offset+p.Length]
package rawpeek
