package main

import (
	"github.com/spf13/cobra"

	"bookshare/internal/library"
)

// libraryDraft collects the flags of create and edit.
type libraryDraft struct {
	title       string
	caption     string
	description string
	rating      int
	image       string
	file        string
}

func (d *libraryDraft) bind(cmd *cobra.Command, edit bool) {
	cmd.Flags().StringVar(&d.title, "title", "", "book title")
	cmd.Flags().IntVar(&d.rating, "rating", 0, "your rating, 1 to 5")
	cmd.Flags().StringVar(&d.image, "image", "", "cover image path, or the URL of the current cover")
	if edit {
		cmd.Flags().StringVar(&d.description, "description", "", "book description")
		cmd.Flags().StringVar(&d.file, "file", "", "PDF path, or the URL of the current file")
		return
	}
	cmd.Flags().StringVar(&d.caption, "caption", "", "short caption")
}

func (d libraryDraft) draft() library.Draft {
	return library.Draft{
		Title:       d.title,
		Caption:     d.caption,
		Description: d.description,
		Rating:      d.rating,
		Image:       d.image,
		File:        d.file,
	}
}
