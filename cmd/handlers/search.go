package handlers

import (
	"bib/internal/config"
	"bib/internal/searchui"
	"bib/internal/store"
)

// Search opens the modal terminal browser over a read-only snapshot of
// every paper the store knows about.
func Search() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	papers, err := st.GetPapers(nil, false)
	if err != nil {
		return err
	}

	return searchui.Run(st, cfg.PDFDir, papers)
}
