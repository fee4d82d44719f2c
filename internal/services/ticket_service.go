package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/utils"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// TicketService renders booking e-tickets as PDF.
type TicketService struct {
	Engine *ReservationEngine
}

// ETicket returns the PDF bytes and a download filename.
func (s TicketService) ETicket(ctx context.Context, bookingID domain.ID) ([]byte, string, error) {
	view, err := s.Engine.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}
	return buildETicketPDF(view)
}

func buildETicketPDF(v models.BookingView) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	trip := "-"
	route := "-"
	schedule := "-"
	if v.Trip != nil {
		trip = v.Trip.Name
		route = v.Trip.Route
		schedule = fmt.Sprintf("%s %s - %s", v.Trip.DepartureDate, v.Trip.DepartureTime, v.Trip.ArrivalTime)
	} else if v.TripError != "" {
		trip = "(" + v.TripError + ")"
	}

	lines := []string{
		"Reference : " + v.Reference,
		fmt.Sprintf("Booking   : #%d", v.ID),
		"Trip      : " + trip,
		"Route     : " + route,
		"Schedule  : " + schedule,
		"Seat      : " + v.SeatNumber,
		"Amount    : " + utils.FormatAmount(v.Amount),
		"Status    : " + string(v.Status),
		"Booked at : " + v.BookedAt.UTC().Format("2006-01-02 15:04 MST"),
	}
	pdf.SetFont("Courier", "", 12)
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	png, err := qrcode.Encode(v.Reference, qrcode.Medium, 256)
	if err != nil {
		return nil, "", fmt.Errorf("qr code: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "png"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 150, 20, 45, 0, false, opts, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	note := "Valid for one rider on the seat shown. Present this ticket when boarding."
	if v.Status == domain.BookingCancelled {
		note = "This booking has been cancelled and is not valid for travel."
	}
	pdf.MultiCell(0, 6, note, "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), ticketFilename(v), nil
}

func ticketFilename(v models.BookingView) string {
	ref := v.Reference
	if i := strings.IndexByte(ref, '-'); i > 0 {
		ref = ref[:i]
	}
	if ref == "" {
		ref = fmt.Sprintf("%d", v.ID)
	}
	return fmt.Sprintf("e-ticket-%s-seat-%s.pdf", ref, v.SeatNumber)
}
