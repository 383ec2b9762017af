package model

// Hall represents a seminar hall that departments can request.  Halls are
// seeded by operators and are read-only through the API.  Available is a
// presentation flag only; it does not block new booking requests.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – unique display name, referenced by bookings.hall_name.
//  Capacity  – maximum number of attendees, always positive.
//  Available – whether the hall is currently offered for booking.
//  Image     – object key (or absolute URL) of the hall picture.
type Hall struct {
    ID        string `json:"id"`        // halls.id
    Name      string `json:"name"`      // halls.name
    Capacity  int    `json:"capacity"`  // halls.capacity
    Available bool   `json:"available"` // halls.available
    Image     string `json:"image"`     // halls.image
}
